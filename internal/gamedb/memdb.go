// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gamedb

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sheegaon/wordpool/internal/wpid"
)

// memDB is a process-local DB driver backed by maps.  Update transactions
// operate on shallow copies of the containers and swap them in on commit,
// so a closure that returns an error leaves the store untouched.
type memDB struct {
	mtx    sync.RWMutex
	closed bool
	state  *memState
}

// memState holds every table.  Values stored in the maps are never mutated
// in place; writers replace entries with fresh copies.
type memState struct {
	players      map[wpid.ID]*Player
	prompts      map[wpid.ID]*Prompt
	rounds       map[wpid.ID]*Round
	phrasesets   map[wpid.ID]*Phraseset
	votes        map[string]*Vote        // phrasesetID/playerID
	transactions map[wpid.ID][]*Transaction
	bonuses      map[wpid.ID]*DailyBonus
	resultViews  map[string]*ResultView // playerID/phrasesetID
	abandonments map[string]*Abandonment
	activities   []*Activity
	seq          map[wpid.ID]int64 // insertion order for rounds and phrasesets
	nextSeq      int64
}

func newMemState() *memState {
	return &memState{
		players:      make(map[wpid.ID]*Player),
		prompts:      make(map[wpid.ID]*Prompt),
		rounds:       make(map[wpid.ID]*Round),
		phrasesets:   make(map[wpid.ID]*Phraseset),
		votes:        make(map[string]*Vote),
		transactions: make(map[wpid.ID][]*Transaction),
		bonuses:      make(map[wpid.ID]*DailyBonus),
		resultViews:  make(map[string]*ResultView),
		abandonments: make(map[string]*Abandonment),
		seq:          make(map[wpid.ID]int64),
	}
}

// clone makes a shallow copy of every container so a transaction can
// mutate freely without touching the committed state.
func (s *memState) clone() *memState {
	c := &memState{
		players:      make(map[wpid.ID]*Player, len(s.players)),
		prompts:      make(map[wpid.ID]*Prompt, len(s.prompts)),
		rounds:       make(map[wpid.ID]*Round, len(s.rounds)),
		phrasesets:   make(map[wpid.ID]*Phraseset, len(s.phrasesets)),
		votes:        make(map[string]*Vote, len(s.votes)),
		transactions: make(map[wpid.ID][]*Transaction, len(s.transactions)),
		bonuses:      make(map[wpid.ID]*DailyBonus, len(s.bonuses)),
		resultViews:  make(map[string]*ResultView, len(s.resultViews)),
		abandonments: make(map[string]*Abandonment, len(s.abandonments)),
		activities:   append([]*Activity(nil), s.activities...),
		seq:          make(map[wpid.ID]int64, len(s.seq)),
		nextSeq:      s.nextSeq,
	}
	for k, v := range s.players {
		c.players[k] = v
	}
	for k, v := range s.prompts {
		c.prompts[k] = v
	}
	for k, v := range s.rounds {
		c.rounds[k] = v
	}
	for k, v := range s.phrasesets {
		c.phrasesets[k] = v
	}
	for k, v := range s.votes {
		c.votes[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = append([]*Transaction(nil), v...)
	}
	for k, v := range s.bonuses {
		c.bonuses[k] = v
	}
	for k, v := range s.resultViews {
		c.resultViews[k] = v
	}
	for k, v := range s.abandonments {
		c.abandonments[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

// NewMemDB returns an empty in-memory database.
func NewMemDB() DB {
	return &memDB{state: newMemState()}
}

func (db *memDB) View(fn func(tx Tx) error) error {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	if db.closed {
		return makeError(ErrClosed, "database is closed")
	}
	return fn(&memTx{state: db.state, writable: false})
}

func (db *memDB) Update(fn func(tx Tx) error) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if db.closed {
		return makeError(ErrClosed, "database is closed")
	}
	next := db.state.clone()
	if err := fn(&memTx{state: next, writable: true}); err != nil {
		return err
	}
	db.state = next
	return nil
}

func (db *memDB) Close() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	db.closed = true
	return nil
}

// memTx implements Tx against a memState.
type memTx struct {
	state    *memState
	writable bool
}

func (tx *memTx) requireWritable() error {
	if !tx.writable {
		return makeError(ErrDriver, "write attempted in read-only transaction")
	}
	return nil
}

func voteKey(phrasesetID, playerID wpid.ID) string {
	return string(phrasesetID) + "/" + string(playerID)
}

func viewKey(playerID, phrasesetID wpid.ID) string {
	return string(playerID) + "/" + string(phrasesetID)
}

func (tx *memTx) Player(id wpid.ID) (*Player, error) {
	p, ok := tx.state.players[id]
	if !ok {
		return nil, makeError(ErrNotFound, fmt.Sprintf("player %s not found", id))
	}
	cp := *p
	return &cp, nil
}

func (tx *memTx) PutPlayer(p *Player) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	cp := *p
	tx.state.players[p.ID] = &cp
	return nil
}

func (tx *memTx) Prompt(id wpid.ID) (*Prompt, error) {
	p, ok := tx.state.prompts[id]
	if !ok {
		return nil, makeError(ErrNotFound, fmt.Sprintf("prompt %s not found", id))
	}
	cp := *p
	return &cp, nil
}

func (tx *memTx) PutPrompt(p *Prompt) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	cp := *p
	tx.state.prompts[p.ID] = &cp
	return nil
}

func (tx *memTx) RandomEnabledPrompt() (*Prompt, error) {
	var enabled []*Prompt
	for _, p := range tx.state.prompts {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return nil, makeError(ErrNotFound, "no enabled prompts")
	}
	cp := *enabled[rand.Intn(len(enabled))]
	return &cp, nil
}

func (tx *memTx) EnabledPromptCount() (int, error) {
	n := 0
	for _, p := range tx.state.prompts {
		if p.Enabled {
			n++
		}
	}
	return n, nil
}

func cloneRound(r *Round) *Round {
	cp := *r
	if r.Prompt != nil {
		pv := *r.Prompt
		cp.Prompt = &pv
	}
	if r.Copy != nil {
		cv := *r.Copy
		cp.Copy = &cv
	}
	if r.Vote != nil {
		vv := *r.Vote
		cp.Vote = &vv
	}
	return &cp
}

func (tx *memTx) Round(id wpid.ID) (*Round, error) {
	r, ok := tx.state.rounds[id]
	if !ok {
		return nil, makeError(ErrNotFound, fmt.Sprintf("round %s not found", id))
	}
	return cloneRound(r), nil
}

func (tx *memTx) PutRound(r *Round) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if _, ok := tx.state.seq[r.ID]; !ok {
		tx.state.nextSeq++
		tx.state.seq[r.ID] = tx.state.nextSeq
	}
	tx.state.rounds[r.ID] = cloneRound(r)
	return nil
}

// sortByInsertion orders rounds by creation time, breaking ties with the
// insertion sequence so same-tick rows keep a stable order.
func (tx *memTx) sortByInsertion(rounds []*Round) {
	sort.SliceStable(rounds, func(i, j int) bool {
		ri, rj := rounds[i], rounds[j]
		if !ri.CreatedAt.Equal(rj.CreatedAt) {
			return ri.CreatedAt.Before(rj.CreatedAt)
		}
		return tx.state.seq[ri.ID] < tx.state.seq[rj.ID]
	})
}

func (tx *memTx) SubmittedCopyRounds(promptRoundID wpid.ID) ([]*Round, error) {
	var out []*Round
	for _, r := range tx.state.rounds {
		if r.Type == RoundCopy && r.Status == RoundSubmitted &&
			r.Copy != nil && r.Copy.PromptRoundID == promptRoundID {

			out = append(out, cloneRound(r))
		}
	}
	tx.sortByInsertion(out)
	return out, nil
}

func (tx *memTx) ActiveRounds() ([]*Round, error) {
	var out []*Round
	for _, r := range tx.state.rounds {
		if r.Status == RoundActive {
			out = append(out, cloneRound(r))
		}
	}
	tx.sortByInsertion(out)
	return out, nil
}

func (tx *memTx) WaitingPromptRounds() ([]*Round, error) {
	var out []*Round
	for _, r := range tx.state.rounds {
		if r.Type == RoundPrompt && r.Status == RoundSubmitted &&
			(r.Prompt.PhrasesetStatus == PromptsetWaitingCopies ||
				r.Prompt.PhrasesetStatus == PromptsetWaitingCopy1) {

			out = append(out, cloneRound(r))
		}
	}
	tx.sortByInsertion(out)
	return out, nil
}

func (tx *memTx) RoundsByPlayer(playerID wpid.ID, typ RoundType) ([]*Round, error) {
	var out []*Round
	for _, r := range tx.state.rounds {
		if r.PlayerID != playerID {
			continue
		}
		if typ != "" && r.Type != typ {
			continue
		}
		out = append(out, cloneRound(r))
	}
	tx.sortByInsertion(out)
	// Newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (tx *memTx) Phraseset(id wpid.ID) (*Phraseset, error) {
	ps, ok := tx.state.phrasesets[id]
	if !ok {
		return nil, makeError(ErrNotFound, fmt.Sprintf("phraseset %s not found", id))
	}
	cp := *ps
	return &cp, nil
}

func (tx *memTx) PutPhraseset(ps *Phraseset) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if _, ok := tx.state.seq[ps.ID]; !ok {
		tx.state.nextSeq++
		tx.state.seq[ps.ID] = tx.state.nextSeq
	}
	cp := *ps
	tx.state.phrasesets[ps.ID] = &cp
	return nil
}

func (tx *memTx) PhrasesetByPromptRound(promptRoundID wpid.ID) (*Phraseset, error) {
	for _, ps := range tx.state.phrasesets {
		if ps.PromptRoundID == promptRoundID {
			cp := *ps
			return &cp, nil
		}
	}
	return nil, makeError(ErrNotFound,
		fmt.Sprintf("no phraseset for prompt round %s", promptRoundID))
}

func (tx *memTx) PhrasesetsByStatus(statuses ...PhrasesetStatus) ([]*Phraseset, error) {
	want := make(map[PhrasesetStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	var out []*Phraseset
	for _, ps := range tx.state.phrasesets {
		if _, ok := want[ps.Status]; ok {
			cp := *ps
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i], out[j]
		if !pi.CreatedAt.Equal(pj.CreatedAt) {
			return pi.CreatedAt.Before(pj.CreatedAt)
		}
		return tx.state.seq[pi.ID] < tx.state.seq[pj.ID]
	})
	return out, nil
}

func (tx *memTx) PutVote(v *Vote) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	key := voteKey(v.PhrasesetID, v.PlayerID)
	if _, ok := tx.state.votes[key]; ok {
		return makeError(ErrExists, fmt.Sprintf("player %s already voted on "+
			"phraseset %s", v.PlayerID, v.PhrasesetID))
	}
	cp := *v
	tx.state.votes[key] = &cp
	return nil
}

func (tx *memTx) VotesByPhraseset(phrasesetID wpid.ID) ([]*Vote, error) {
	var out []*Vote
	for _, v := range tx.state.votes {
		if v.PhrasesetID == phrasesetID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (tx *memTx) VoteByPlayer(phrasesetID, playerID wpid.ID) (*Vote, error) {
	v, ok := tx.state.votes[voteKey(phrasesetID, playerID)]
	if !ok {
		return nil, makeError(ErrNotFound, fmt.Sprintf("no vote by %s on %s",
			playerID, phrasesetID))
	}
	cp := *v
	return &cp, nil
}

func (tx *memTx) AppendTransaction(t *Transaction) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	cp := *t
	tx.state.transactions[t.PlayerID] = append(tx.state.transactions[t.PlayerID], &cp)
	return nil
}

func (tx *memTx) TransactionsByPlayer(playerID wpid.ID, limit, offset int) ([]*Transaction, error) {
	entries := tx.state.transactions[playerID]
	// Journal is stored oldest first; walk it backwards.
	var out []*Transaction
	for i := len(entries) - 1 - offset; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (tx *memTx) PutDailyBonus(b *DailyBonus) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	cp := *b
	tx.state.bonuses[b.ID] = &cp
	return nil
}

func (tx *memTx) ResultView(phrasesetID, playerID wpid.ID) (*ResultView, error) {
	rv, ok := tx.state.resultViews[viewKey(playerID, phrasesetID)]
	if !ok {
		return nil, makeError(ErrNotFound, fmt.Sprintf("no result view for "+
			"player %s on phraseset %s", playerID, phrasesetID))
	}
	cp := *rv
	return &cp, nil
}

func (tx *memTx) PutResultView(rv *ResultView) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	cp := *rv
	tx.state.resultViews[viewKey(rv.PlayerID, rv.PhrasesetID)] = &cp
	return nil
}

func (tx *memTx) PutAbandonment(a *Abandonment) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	cp := *a
	tx.state.abandonments[viewKey(a.PlayerID, a.PromptRoundID)] = &cp
	return nil
}

func (tx *memTx) HasAbandonment(playerID, promptRoundID wpid.ID, cutoff time.Time) (bool, error) {
	a, ok := tx.state.abandonments[viewKey(playerID, promptRoundID)]
	if !ok {
		return false, nil
	}
	return !a.AbandonedAt.Before(cutoff), nil
}

func cloneActivity(a *Activity) *Activity {
	cp := *a
	if a.Payload != nil {
		cp.Payload = make(map[string]string, len(a.Payload))
		for k, v := range a.Payload {
			cp.Payload[k] = v
		}
	}
	return &cp
}

func (tx *memTx) PutActivity(a *Activity) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	tx.state.activities = append(tx.state.activities, cloneActivity(a))
	return nil
}

func (tx *memTx) ActivitiesByPhraseset(phrasesetID wpid.ID) ([]*Activity, error) {
	var out []*Activity
	for _, a := range tx.state.activities {
		if a.PhrasesetID == phrasesetID {
			out = append(out, cloneActivity(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (tx *memTx) AttachActivityPhraseset(promptRoundID, phrasesetID wpid.ID) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	for i, a := range tx.state.activities {
		if a.PromptRoundID == promptRoundID && a.PhrasesetID == "" {
			cp := cloneActivity(a)
			cp.PhrasesetID = phrasesetID
			tx.state.activities[i] = cp
		}
	}
	return nil
}
