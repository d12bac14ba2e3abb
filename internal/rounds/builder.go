// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rounds

import (
	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/wpid"
)

// buildPhrasesetTx materializes a phraseset once two copies have been
// submitted for the prompt round.  Called inside the copy submitter's
// storage transaction.  It reports whether a phraseset exists for the
// prompt round afterward; with only one copy so far the prompt still
// needs a second copy player and the caller requeues it.  A third copy
// arriving after a race is a no-op.
func (c *Coordinator) buildPhrasesetTx(tx gamedb.Tx, promptRoundID wpid.ID) (bool, error) {
	copies, err := tx.SubmittedCopyRounds(promptRoundID)
	if err != nil {
		return false, err
	}

	promptRound, err := tx.Round(promptRoundID)
	if err != nil {
		return false, err
	}

	if len(copies) < 2 {
		promptRound.Prompt.PhrasesetStatus = gamedb.PromptsetWaitingCopy1
		return false, tx.PutRound(promptRound)
	}

	if _, err := tx.PhrasesetByPromptRound(promptRoundID); err == nil {
		// Already built; the late copy stays submitted but plays no
		// part in the phraseset.
		log.Debugf("Ignoring extra copy for prompt round %s", promptRoundID)
		return true, nil
	}

	copy1, copy2 := copies[0], copies[1]
	now := c.now().UTC()
	ps := &gamedb.Phraseset{
		ID:            wpid.New(),
		PromptRoundID: promptRoundID,
		CopyRound1ID:  copy1.ID,
		CopyRound2ID:  copy2.ID,

		PromptText:     promptRound.Prompt.PromptText,
		OriginalPhrase: promptRound.Prompt.SubmittedPhrase,
		CopyPhrase1:    copy1.Copy.CopyPhrase,
		CopyPhrase2:    copy2.Copy.CopyPhrase,

		Status:    gamedb.PhrasesetOpen,
		CreatedAt: now,

		SystemContribution: copy1.Copy.SystemContribution +
			copy2.Copy.SystemContribution,
	}
	ps.TotalPool = c.params.PhrasesetPool + ps.SystemContribution

	if err := tx.PutPhraseset(ps); err != nil {
		return false, err
	}

	promptRound.Prompt.PhrasesetStatus = gamedb.PromptsetActive
	promptRound.Prompt.Copy1PlayerID = copy1.PlayerID
	promptRound.Prompt.Copy2PlayerID = copy2.PlayerID
	if err := tx.PutRound(promptRound); err != nil {
		return false, err
	}

	// Pool contributions beyond the player entries come from the house.
	if ps.SystemContribution > 0 {
		err := tx.AppendTransaction(&gamedb.Transaction{
			ID:          wpid.New(),
			PlayerID:    "",
			Amount:      -ps.SystemContribution,
			Kind:        gamedb.TxSystemContribution,
			ReferenceID: ps.ID,
			CreatedAt:   now,
		})
		if err != nil {
			return false, err
		}
	}

	// Earlier prompt-level activity rows predate the phraseset id.
	if err := tx.AttachActivityPhraseset(promptRoundID, ps.ID); err != nil {
		return false, err
	}
	err = tx.PutActivity(&gamedb.Activity{
		ID:            wpid.New(),
		PhrasesetID:   ps.ID,
		PromptRoundID: promptRoundID,
		PlayerID:      promptRound.PlayerID,
		Type:          gamedb.ActivityPhrasesetCreated,
		CreatedAt:     now,
	})
	if err != nil {
		return false, err
	}

	log.Infof("Built phraseset %s (pool %d) for prompt round %s",
		ps.ID, ps.TotalPool, promptRoundID)
	return true, nil
}
