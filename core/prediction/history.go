package prediction

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

// ListForSubject pages through the predictions of subject, newest first.
// Unless includeActing is set, predictions made on their behalf are left out.
func (svc *Service) ListForSubject(ctx context.Context, subject user.User, includeActing bool, page core.Page) (RecordPage, error) {
	filter := Filter{SubjectID: subject.ID, SelfOnly: !includeActing}
	recs, total, err := svc.repo.QueryPredictions(ctx, filter, page)
	if err != nil {
		return RecordPage{}, errors.Wrap(err, "querying predictions")
	}
	if recs == nil {
		recs = []Record{}
	}
	return RecordPage{Predictions: recs, Total: total, Page: page}, nil
}

// ListByActor returns every prediction actor made on someone's behalf, newest first.
func (svc *Service) ListByActor(ctx context.Context, actor user.User) ([]Record, error) {
	recs, _, err := svc.repo.QueryPredictions(ctx, Filter{ActorID: actor.ID}, core.Page{})
	if err != nil {
		return nil, errors.Wrap(err, "querying predictions")
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

// DeleteOwned deletes a prediction actor made. Self-predictions are never deletable this way.
func (svc *Service) DeleteOwned(ctx context.Context, actor user.User, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrRecordNotFound
	}
	rec, err := svc.repo.GetPrediction(ctx, id)
	if err != nil {
		return err
	}
	if rec.IsSelf() || rec.ActorID != actor.ID {
		return ErrNotOwner
	}
	return svc.repo.DeletePrediction(ctx, id)
}

// ListRawInputs pages through the raw inputs recorded for subject, newest first.
func (svc *Service) ListRawInputs(ctx context.Context, subject user.User, page core.Page) (RawInputPage, error) {
	recs, total, err := svc.repo.QueryRawInputs(ctx, Filter{SubjectID: subject.ID}, page)
	if err != nil {
		return RawInputPage{}, errors.Wrap(err, "querying raw inputs")
	}
	if recs == nil {
		recs = []RawInputRecord{}
	}
	return RawInputPage{Items: recs, Total: total, Page: page}, nil
}

// ListRawInputsByActor returns every raw input actor recorded, newest first.
func (svc *Service) ListRawInputsByActor(ctx context.Context, actor user.User) ([]RawInputRecord, error) {
	recs, _, err := svc.repo.QueryRawInputs(ctx, Filter{ActorID: actor.ID}, core.Page{})
	if err != nil {
		return nil, errors.Wrap(err, "querying raw inputs")
	}
	if recs == nil {
		recs = []RawInputRecord{}
	}
	return recs, nil
}

// ClassOverview lists the students of teacher's class with their latest prediction.
func (svc *Service) ClassOverview(ctx context.Context, teacher user.User) ([]StudentSummary, error) {
	if teacher.ClassName == "" {
		return nil, ErrNoClass
	}
	students, err := svc.users.Query(
		ctx,
		user.QueryFilter{Roles: []user.Role{user.RoleStudent}, ClassName: teacher.ClassName},
		core.DBOrdering{Field: "username", Ascending: true},
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	latest, err := svc.repo.LatestPredictions(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying latest predictions")
	}

	summaries := make([]StudentSummary, 0, len(students))
	for _, s := range students {
		summary := StudentSummary{User: s}
		if rec, ok := latest[s.ID]; ok {
			score, at := rec.PredictedScore, rec.CreatedAt
			summary.LastScore = &score
			summary.LastPredictedAt = &at
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
