package match

import (
	"context"
	"time"

	"github.com/jmehdipour/match-stream/internal/model"
	"github.com/jmehdipour/match-stream/internal/repository"
	"github.com/jmehdipour/match-stream/internal/util"
)

// TransactionInitiator opens PENDING ledger entries. Settlement happens elsewhere.
type TransactionInitiator struct {
	repo repository.TransactionsRepository
	now  func() time.Time
}

func NewTransactionInitiator(repo repository.TransactionsRepository) *TransactionInitiator {
	return &TransactionInitiator{repo: repo, now: time.Now}
}

// Initiate appends a fresh transaction. amount may be nil.
func (t *TransactionInitiator) Initiate(ctx context.Context, matchID, userID, jobID string, amount *int64, typ model.TxType) (model.Transaction, error) {
	at := t.now().UTC()
	tx := model.Transaction{
		ID:        "txn-" + util.NewID(at),
		MatchID:   matchID,
		UserID:    model.StrPtr(userID),
		JobID:     model.StrPtr(jobID),
		Amount:    amount,
		Type:      typ,
		Status:    model.TxPending,
		CreatedAt: at,
	}
	if err := t.repo.Insert(ctx, nil, tx); err != nil {
		return model.Transaction{}, err
	}
	return tx, nil
}
