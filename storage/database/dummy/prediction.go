package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/prediction"
)

type predictionRepository struct {
	db *predictionTable
}

var _ prediction.Repository = (*predictionRepository)(nil) // interface compliance check

func NewPredictionRepository(db *DB) prediction.Repository {
	return &predictionRepository{db: db.prediction}
}

func matches(filter prediction.Filter, subjectID, actorID string) bool {
	if filter.SubjectID != "" && subjectID != filter.SubjectID {
		return false
	}
	if filter.ActorID != "" && actorID != filter.ActorID {
		return false
	}
	if filter.SelfOnly && actorID != "" {
		return false
	}
	return true
}

// newestFirst sorts by created_at desc, latest insert first on ties.
func newestFirst[T any](rows []row[T], createdAt func(T) int64) {
	sort.SliceStable(rows, func(i, j int) bool {
		ci, cj := createdAt(rows[i].val), createdAt(rows[j].val)
		if ci != cj {
			return ci > cj
		}
		return rows[i].seq > rows[j].seq
	})
}

func paginate[T any](rows []row[T], page core.Page) []T {
	start, end := page.Bounds(len(rows))
	out := make([]T, 0, end-start)
	for _, r := range rows[start:end] {
		out = append(out, r.val)
	}
	return out
}

func (t *predictionTable) deleteSubject(subjectID string) {
	t.Lock()
	defer t.Unlock()

	records := t.records[:0]
	for _, r := range t.records {
		if r.val.SubjectID != subjectID {
			records = append(records, r)
		}
	}
	t.records = records

	rawInputs := t.rawInputs[:0]
	for _, r := range t.rawInputs {
		if r.val.SubjectID != subjectID {
			rawInputs = append(rawInputs, r)
		}
	}
	t.rawInputs = rawInputs
}

func (repo *predictionRepository) CreatePrediction(_ context.Context, rec prediction.Record) (prediction.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	repo.db.records = append(repo.db.records, row[prediction.Record]{seq: repo.db.seq, val: rec})
	return rec, nil
}

func (repo *predictionRepository) GetPrediction(_ context.Context, id string) (prediction.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, r := range repo.db.records {
		if r.val.ID == id {
			return r.val, nil
		}
	}
	return prediction.Record{}, prediction.ErrRecordNotFound
}

func (repo *predictionRepository) QueryPredictions(_ context.Context, filter prediction.Filter, page core.Page) ([]prediction.Record, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var rows []row[prediction.Record]
	for _, r := range repo.db.records {
		if matches(filter, r.val.SubjectID, r.val.ActorID) {
			rows = append(rows, r)
		}
	}
	newestFirst(rows, func(rec prediction.Record) int64 { return rec.CreatedAt.UnixNano() })
	return paginate(rows, page), len(rows), nil
}

func (repo *predictionRepository) DeletePrediction(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i, r := range repo.db.records {
		if r.val.ID == id {
			repo.db.records = append(repo.db.records[:i], repo.db.records[i+1:]...)
			return nil
		}
	}
	return prediction.ErrRecordNotFound
}

func (repo *predictionRepository) LatestPredictions(_ context.Context, subjectIDs ...string) (map[string]prediction.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := make(map[string]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		wanted[id] = true
	}
	latest := make(map[string]row[prediction.Record])
	for _, r := range repo.db.records {
		if !wanted[r.val.SubjectID] {
			continue
		}
		cur, ok := latest[r.val.SubjectID]
		if !ok || r.val.CreatedAt.After(cur.val.CreatedAt) ||
			(r.val.CreatedAt.Equal(cur.val.CreatedAt) && r.seq > cur.seq) {
			latest[r.val.SubjectID] = r
		}
	}

	out := make(map[string]prediction.Record, len(latest))
	for id, r := range latest {
		out[id] = r.val
	}
	return out, nil
}

func (repo *predictionRepository) CreateRawInput(_ context.Context, rec prediction.RawInputRecord) (prediction.RawInputRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	repo.db.rawInputs = append(repo.db.rawInputs, row[prediction.RawInputRecord]{seq: repo.db.seq, val: rec})
	return rec, nil
}

func (repo *predictionRepository) QueryRawInputs(_ context.Context, filter prediction.Filter, page core.Page) ([]prediction.RawInputRecord, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var rows []row[prediction.RawInputRecord]
	for _, r := range repo.db.rawInputs {
		if matches(filter, r.val.SubjectID, r.val.ActorID) {
			rows = append(rows, r)
		}
	}
	newestFirst(rows, func(rec prediction.RawInputRecord) int64 { return rec.CreatedAt.UnixNano() })
	return paginate(rows, page), len(rows), nil
}
