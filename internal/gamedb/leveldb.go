// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gamedb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/sheegaon/wordpool/internal/wpid"
)

// Key prefixes.  Each table lives under its own two-byte prefix followed by
// a slash so prefix iteration never crosses tables.
const (
	prefixPlayer      = "pl/"
	prefixPrompt      = "pm/"
	prefixRound       = "rd/"
	prefixPhraseset   = "ps/"
	prefixVote        = "vt/" // vt/<phrasesetID>/<playerID>
	prefixTransaction = "tx/" // tx/<playerID>/<seq>
	prefixBonus       = "db/"
	prefixResultView  = "rv/" // rv/<playerID>/<phrasesetID>
	prefixAbandonment = "ab/" // ab/<playerID>/<promptRoundID>
	prefixActivity    = "ac/" // ac/<seq>
	keySeq            = "mt/seq"
)

// levelDB is a durable DB driver backed by goleveldb.  Updates run inside a
// native leveldb transaction, so the multi-row atomic commit contract holds
// across process crashes.
type levelDB struct {
	ldb *leveldb.DB
}

// OpenLevelDB opens (creating if necessary) a leveldb-backed game database
// at the given directory.
func OpenLevelDB(path string) (DB, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, makeError(ErrDriver, fmt.Sprintf("open %s: %v", path, err))
	}
	log.Infof("Opened game database at %s", path)
	return &levelDB{ldb: ldb}, nil
}

func (db *levelDB) View(fn func(tx Tx) error) error {
	snap, err := db.ldb.GetSnapshot()
	if err != nil {
		return makeError(ErrDriver, fmt.Sprintf("snapshot: %v", err))
	}
	defer snap.Release()
	return fn(&levelTx{reader: snap})
}

func (db *levelDB) Update(fn func(tx Tx) error) error {
	tr, err := db.ldb.OpenTransaction()
	if err != nil {
		return makeError(ErrDriver, fmt.Sprintf("begin transaction: %v", err))
	}
	ltx := &levelTx{reader: tr, writer: tr}
	if err := fn(ltx); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		return makeError(ErrDriver, fmt.Sprintf("commit: %v", err))
	}
	return nil
}

func (db *levelDB) Close() error {
	return db.ldb.Close()
}

// ldbReader is the read surface shared by snapshots and transactions.
type ldbReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// ldbWriter is the write surface of a leveldb transaction.
type ldbWriter interface {
	Put(key, value []byte, wo *opt.WriteOptions) error
	Delete(key []byte, wo *opt.WriteOptions) error
}

// levelTx implements Tx against a leveldb snapshot or transaction.
type levelTx struct {
	reader ldbReader
	writer ldbWriter
}

func (tx *levelTx) requireWritable() error {
	if tx.writer == nil {
		return makeError(ErrDriver, "write attempted in read-only transaction")
	}
	return nil
}

func (tx *levelTx) get(key string, v any, notFoundDesc string) error {
	raw, err := tx.reader.Get([]byte(key), nil)
	if err == ldberrors.ErrNotFound {
		return makeError(ErrNotFound, notFoundDesc)
	}
	if err != nil {
		return makeError(ErrDriver, fmt.Sprintf("get %s: %v", key, err))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return makeError(ErrCorrupted, fmt.Sprintf("decode %s: %v", key, err))
	}
	return nil
}

func (tx *levelTx) put(key string, v any) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return makeError(ErrDriver, fmt.Sprintf("encode %s: %v", key, err))
	}
	if err := tx.writer.Put([]byte(key), raw, nil); err != nil {
		return makeError(ErrDriver, fmt.Sprintf("put %s: %v", key, err))
	}
	return nil
}

func (tx *levelTx) has(key string) (bool, error) {
	_, err := tx.reader.Get([]byte(key), nil)
	if err == ldberrors.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, makeError(ErrDriver, fmt.Sprintf("get %s: %v", key, err))
	}
	return true, nil
}

// nextSeq increments and returns the global insertion sequence.
func (tx *levelTx) nextSeq() (uint64, error) {
	if err := tx.requireWritable(); err != nil {
		return 0, err
	}
	var seq uint64
	raw, err := tx.reader.Get([]byte(keySeq), nil)
	switch {
	case err == ldberrors.ErrNotFound:
	case err != nil:
		return 0, makeError(ErrDriver, fmt.Sprintf("get seq: %v", err))
	default:
		seq = binary.BigEndian.Uint64(raw)
	}
	seq++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	if err := tx.writer.Put([]byte(keySeq), buf[:], nil); err != nil {
		return 0, makeError(ErrDriver, fmt.Sprintf("put seq: %v", err))
	}
	return seq, nil
}

func seqKey(prefix string, seq uint64) string {
	return fmt.Sprintf("%s%016x", prefix, seq)
}

// Stored row envelopes carry the insertion sequence used for stable
// ordering of same-timestamp rows.
type storedRound struct {
	Seq   uint64
	Round *Round
}

type storedPhraseset struct {
	Seq       uint64
	Phraseset *Phraseset
}

func (tx *levelTx) Player(id wpid.ID) (*Player, error) {
	var p Player
	err := tx.get(prefixPlayer+string(id), &p,
		fmt.Sprintf("player %s not found", id))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (tx *levelTx) PutPlayer(p *Player) error {
	return tx.put(prefixPlayer+string(p.ID), p)
}

func (tx *levelTx) Prompt(id wpid.ID) (*Prompt, error) {
	var p Prompt
	err := tx.get(prefixPrompt+string(id), &p,
		fmt.Sprintf("prompt %s not found", id))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (tx *levelTx) PutPrompt(p *Prompt) error {
	return tx.put(prefixPrompt+string(p.ID), p)
}

func (tx *levelTx) forEach(prefix string, fn func(key string, raw []byte) error) error {
	it := tx.reader.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()
	for it.Next() {
		raw := append([]byte(nil), it.Value()...)
		if err := fn(string(it.Key()), raw); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return makeError(ErrDriver, fmt.Sprintf("iterate %s: %v", prefix, err))
	}
	return nil
}

func (tx *levelTx) enabledPrompts() ([]*Prompt, error) {
	var out []*Prompt
	err := tx.forEach(prefixPrompt, func(key string, raw []byte) error {
		var p Prompt
		if err := json.Unmarshal(raw, &p); err != nil {
			return makeError(ErrCorrupted, fmt.Sprintf("decode %s: %v", key, err))
		}
		if p.Enabled {
			out = append(out, &p)
		}
		return nil
	})
	return out, err
}

func (tx *levelTx) RandomEnabledPrompt() (*Prompt, error) {
	enabled, err := tx.enabledPrompts()
	if err != nil {
		return nil, err
	}
	if len(enabled) == 0 {
		return nil, makeError(ErrNotFound, "no enabled prompts")
	}
	return enabled[rand.Intn(len(enabled))], nil
}

func (tx *levelTx) EnabledPromptCount() (int, error) {
	enabled, err := tx.enabledPrompts()
	if err != nil {
		return 0, err
	}
	return len(enabled), nil
}

func (tx *levelTx) Round(id wpid.ID) (*Round, error) {
	var sr storedRound
	err := tx.get(prefixRound+string(id), &sr,
		fmt.Sprintf("round %s not found", id))
	if err != nil {
		return nil, err
	}
	return sr.Round, nil
}

func (tx *levelTx) PutRound(r *Round) error {
	key := prefixRound + string(r.ID)
	var sr storedRound
	err := tx.get(key, &sr, "")
	switch {
	case err == nil:
	case isNotFound(err):
		seq, serr := tx.nextSeq()
		if serr != nil {
			return serr
		}
		sr.Seq = seq
	default:
		return err
	}
	sr.Round = r
	return tx.put(key, &sr)
}

func (tx *levelTx) selectRounds(match func(*Round) bool) ([]*Round, error) {
	var rows []storedRound
	err := tx.forEach(prefixRound, func(key string, raw []byte) error {
		var sr storedRound
		if err := json.Unmarshal(raw, &sr); err != nil {
			return makeError(ErrCorrupted, fmt.Sprintf("decode %s: %v", key, err))
		}
		if match(sr.Round) {
			rows = append(rows, sr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i], rows[j]
		if !ri.Round.CreatedAt.Equal(rj.Round.CreatedAt) {
			return ri.Round.CreatedAt.Before(rj.Round.CreatedAt)
		}
		return ri.Seq < rj.Seq
	})
	out := make([]*Round, 0, len(rows))
	for _, sr := range rows {
		out = append(out, sr.Round)
	}
	return out, nil
}

func (tx *levelTx) SubmittedCopyRounds(promptRoundID wpid.ID) ([]*Round, error) {
	return tx.selectRounds(func(r *Round) bool {
		return r.Type == RoundCopy && r.Status == RoundSubmitted &&
			r.Copy != nil && r.Copy.PromptRoundID == promptRoundID
	})
}

func (tx *levelTx) ActiveRounds() ([]*Round, error) {
	return tx.selectRounds(func(r *Round) bool {
		return r.Status == RoundActive
	})
}

func (tx *levelTx) WaitingPromptRounds() ([]*Round, error) {
	return tx.selectRounds(func(r *Round) bool {
		return r.Type == RoundPrompt && r.Status == RoundSubmitted &&
			(r.Prompt.PhrasesetStatus == PromptsetWaitingCopies ||
				r.Prompt.PhrasesetStatus == PromptsetWaitingCopy1)
	})
}

func (tx *levelTx) RoundsByPlayer(playerID wpid.ID, typ RoundType) ([]*Round, error) {
	rounds, err := tx.selectRounds(func(r *Round) bool {
		return r.PlayerID == playerID && (typ == "" || r.Type == typ)
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rounds)-1; i < j; i, j = i+1, j-1 {
		rounds[i], rounds[j] = rounds[j], rounds[i]
	}
	return rounds, nil
}

func (tx *levelTx) Phraseset(id wpid.ID) (*Phraseset, error) {
	var sp storedPhraseset
	err := tx.get(prefixPhraseset+string(id), &sp,
		fmt.Sprintf("phraseset %s not found", id))
	if err != nil {
		return nil, err
	}
	return sp.Phraseset, nil
}

func (tx *levelTx) PutPhraseset(ps *Phraseset) error {
	key := prefixPhraseset + string(ps.ID)
	var sp storedPhraseset
	err := tx.get(key, &sp, "")
	switch {
	case err == nil:
	case isNotFound(err):
		seq, serr := tx.nextSeq()
		if serr != nil {
			return serr
		}
		sp.Seq = seq
	default:
		return err
	}
	sp.Phraseset = ps
	return tx.put(key, &sp)
}

func (tx *levelTx) selectPhrasesets(match func(*Phraseset) bool) ([]*Phraseset, error) {
	var rows []storedPhraseset
	err := tx.forEach(prefixPhraseset, func(key string, raw []byte) error {
		var sp storedPhraseset
		if err := json.Unmarshal(raw, &sp); err != nil {
			return makeError(ErrCorrupted, fmt.Sprintf("decode %s: %v", key, err))
		}
		if match(sp.Phraseset) {
			rows = append(rows, sp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := rows[i], rows[j]
		if !pi.Phraseset.CreatedAt.Equal(pj.Phraseset.CreatedAt) {
			return pi.Phraseset.CreatedAt.Before(pj.Phraseset.CreatedAt)
		}
		return pi.Seq < pj.Seq
	})
	out := make([]*Phraseset, 0, len(rows))
	for _, sp := range rows {
		out = append(out, sp.Phraseset)
	}
	return out, nil
}

func (tx *levelTx) PhrasesetByPromptRound(promptRoundID wpid.ID) (*Phraseset, error) {
	matches, err := tx.selectPhrasesets(func(ps *Phraseset) bool {
		return ps.PromptRoundID == promptRoundID
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, makeError(ErrNotFound,
			fmt.Sprintf("no phraseset for prompt round %s", promptRoundID))
	}
	return matches[0], nil
}

func (tx *levelTx) PhrasesetsByStatus(statuses ...PhrasesetStatus) ([]*Phraseset, error) {
	want := make(map[PhrasesetStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	return tx.selectPhrasesets(func(ps *Phraseset) bool {
		_, ok := want[ps.Status]
		return ok
	})
}

func (tx *levelTx) PutVote(v *Vote) error {
	key := prefixVote + string(v.PhrasesetID) + "/" + string(v.PlayerID)
	exists, err := tx.has(key)
	if err != nil {
		return err
	}
	if exists {
		return makeError(ErrExists, fmt.Sprintf("player %s already voted on "+
			"phraseset %s", v.PlayerID, v.PhrasesetID))
	}
	return tx.put(key, v)
}

func (tx *levelTx) VotesByPhraseset(phrasesetID wpid.ID) ([]*Vote, error) {
	var out []*Vote
	err := tx.forEach(prefixVote+string(phrasesetID)+"/", func(key string, raw []byte) error {
		var v Vote
		if err := json.Unmarshal(raw, &v); err != nil {
			return makeError(ErrCorrupted, fmt.Sprintf("decode %s: %v", key, err))
		}
		out = append(out, &v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (tx *levelTx) VoteByPlayer(phrasesetID, playerID wpid.ID) (*Vote, error) {
	var v Vote
	err := tx.get(prefixVote+string(phrasesetID)+"/"+string(playerID), &v,
		fmt.Sprintf("no vote by %s on %s", playerID, phrasesetID))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (tx *levelTx) AppendTransaction(t *Transaction) error {
	seq, err := tx.nextSeq()
	if err != nil {
		return err
	}
	return tx.put(seqKey(prefixTransaction+string(t.PlayerID)+"/", seq), t)
}

func (tx *levelTx) TransactionsByPlayer(playerID wpid.ID, limit, offset int) ([]*Transaction, error) {
	var all []*Transaction
	err := tx.forEach(prefixTransaction+string(playerID)+"/", func(key string, raw []byte) error {
		var t Transaction
		if err := json.Unmarshal(raw, &t); err != nil {
			return makeError(ErrCorrupted, fmt.Sprintf("decode %s: %v", key, err))
		}
		all = append(all, &t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Key iteration yields oldest first; serve newest first.
	var out []*Transaction
	for i := len(all) - 1 - offset; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (tx *levelTx) PutDailyBonus(b *DailyBonus) error {
	return tx.put(prefixBonus+string(b.ID), b)
}

func (tx *levelTx) ResultView(phrasesetID, playerID wpid.ID) (*ResultView, error) {
	var rv ResultView
	err := tx.get(prefixResultView+string(playerID)+"/"+string(phrasesetID), &rv,
		fmt.Sprintf("no result view for player %s on phraseset %s",
			playerID, phrasesetID))
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (tx *levelTx) PutResultView(rv *ResultView) error {
	return tx.put(prefixResultView+string(rv.PlayerID)+"/"+string(rv.PhrasesetID), rv)
}

func (tx *levelTx) PutAbandonment(a *Abandonment) error {
	return tx.put(prefixAbandonment+string(a.PlayerID)+"/"+string(a.PromptRoundID), a)
}

func (tx *levelTx) HasAbandonment(playerID, promptRoundID wpid.ID, cutoff time.Time) (bool, error) {
	var a Abandonment
	err := tx.get(prefixAbandonment+string(playerID)+"/"+string(promptRoundID), &a, "")
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !a.AbandonedAt.Before(cutoff), nil
}

func (tx *levelTx) PutActivity(a *Activity) error {
	seq, err := tx.nextSeq()
	if err != nil {
		return err
	}
	return tx.put(seqKey(prefixActivity, seq), a)
}

func (tx *levelTx) ActivitiesByPhraseset(phrasesetID wpid.ID) ([]*Activity, error) {
	var out []*Activity
	err := tx.forEach(prefixActivity, func(key string, raw []byte) error {
		var a Activity
		if err := json.Unmarshal(raw, &a); err != nil {
			return makeError(ErrCorrupted, fmt.Sprintf("decode %s: %v", key, err))
		}
		if a.PhrasesetID == phrasesetID {
			out = append(out, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (tx *levelTx) AttachActivityPhraseset(promptRoundID, phrasesetID wpid.ID) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	type pending struct {
		key string
		act *Activity
	}
	var matches []pending
	err := tx.forEach(prefixActivity, func(key string, raw []byte) error {
		var a Activity
		if err := json.Unmarshal(raw, &a); err != nil {
			return makeError(ErrCorrupted, fmt.Sprintf("decode %s: %v", key, err))
		}
		if a.PromptRoundID == promptRoundID && a.PhrasesetID == "" {
			matches = append(matches, pending{key: key, act: &a})
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, m := range matches {
		m.act.PhrasesetID = phrasesetID
		if err := tx.put(m.key, m.act); err != nil {
			return err
		}
	}
	return nil
}

// isNotFound reports whether err is a gamedb ErrNotFound.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
