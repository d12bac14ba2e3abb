// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package votes

import (
	"testing"
	"time"

	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/params"
	"github.com/sheegaon/wordpool/internal/wpid"
)

func ps(id string, voteCount int, thirdAt, fifthAt time.Time) *gamedb.Phraseset {
	status := gamedb.PhrasesetOpen
	if voteCount >= 5 {
		status = gamedb.PhrasesetClosing
	}
	return &gamedb.Phraseset{
		ID:          wpid.ID(id),
		Status:      status,
		VoteCount:   voteCount,
		ThirdVoteAt: thirdAt,
		FifthVoteAt: fifthAt,
	}
}

func TestSelectPhrasesetPriority(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	closingOld := ps("closing-old", 6, base, base.Add(1*time.Minute))
	closingNew := ps("closing-new", 5, base, base.Add(5*time.Minute))
	agingOld := ps("aging-old", 3, base.Add(1*time.Minute), time.Time{})
	agingNew := ps("aging-new", 4, base.Add(9*time.Minute), time.Time{})
	young := ps("young", 1, time.Time{}, time.Time{})

	tests := []struct {
		name     string
		eligible []*gamedb.Phraseset
		want     wpid.ID
	}{
		{"closing beats aging and young",
			[]*gamedb.Phraseset{young, agingOld, closingNew, closingOld},
			"closing-old"},
		{"oldest fifth vote drains first",
			[]*gamedb.Phraseset{closingNew, closingOld}, "closing-old"},
		{"aging beats young",
			[]*gamedb.Phraseset{young, agingNew, agingOld}, "aging-old"},
		{"oldest third vote first",
			[]*gamedb.Phraseset{agingNew, agingOld}, "aging-old"},
		{"lone young set", []*gamedb.Phraseset{young}, "young"},
		{"empty", nil, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := selectPhraseset(test.eligible)
			if test.want == "" {
				if got != nil {
					t.Fatalf("got %s, want nil", got.ID)
				}
				return
			}
			if got == nil || got.ID != test.want {
				t.Fatalf("got %v, want %s", got, test.want)
			}
		})
	}
}

func TestDueForFinalization(t *testing.T) {
	s := New(&Config{Params: params.Default()})
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ps   *gamedb.Phraseset
		now  time.Time
		want bool
	}{
		{"young set never closes",
			ps("a", 2, time.Time{}, time.Time{}), base.Add(time.Hour), false},
		{"vote cap closes immediately",
			ps("b", 20, base, base), base, true},
		{"fifth vote window still open",
			ps("c", 5, base, base), base.Add(59 * time.Second), false},
		{"fifth vote window elapsed",
			ps("d", 5, base, base), base.Add(60 * time.Second), true},
		{"third vote timeout still open",
			ps("e", 3, base, time.Time{}), base.Add(599 * time.Second), false},
		{"third vote timeout elapsed",
			ps("f", 3, base, time.Time{}), base.Add(600 * time.Second), true},
		{"fifth vote suppresses third clock",
			ps("g", 5, base, base.Add(9 * time.Minute)),
			base.Add(9*time.Minute + 30*time.Second), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := s.dueForFinalization(test.ps, test.now); got != test.want {
				t.Fatalf("got %t, want %t", got, test.want)
			}
		})
	}

	finalized := ps("h", 20, base, base)
	finalized.Status = gamedb.PhrasesetFinalized
	if s.dueForFinalization(finalized, base.Add(time.Hour)) {
		t.Fatal("finalized phraseset reported due again")
	}
}
