package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"agencyops/internal/chat"
	"agencyops/internal/domain"
	"agencyops/internal/engine"
)

func registerTeamSync(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-posting",
		Method:        http.MethodPost,
		Path:          "/teamsync/postings",
		Summary:       "Open a job posting",
		Tags:          []string{"teamsync"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.PostingCreateOptions `json:"body"`
	}) (*out[domain.JobPosting], error) {
		p, err := e.CreatePosting(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-postings",
		Method:      http.MethodGet,
		Path:        "/teamsync/postings",
		Summary:     "List job postings",
		Tags:        []string{"teamsync"},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"open,closed"`
	}) (*out[[]domain.JobPosting], error) {
		items, err := e.ListPostings(ctx, identityFromContext(ctx), domain.PostingStatus(input.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-candidate",
		Method:        http.MethodPost,
		Path:          "/teamsync/candidates",
		Summary:       "Add a candidate to an open posting",
		Tags:          []string{"teamsync"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.CandidateCreateOptions `json:"body"`
	}) (*out[domain.Candidate], error) {
		c, err := e.AddCandidate(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-candidates",
		Method:      http.MethodGet,
		Path:        "/teamsync/candidates",
		Summary:     "List candidates",
		Tags:        []string{"teamsync"},
	}, func(ctx context.Context, input *struct {
		PostingID string `query:"posting_id"`
	}) (*out[[]domain.Candidate], error) {
		items, err := e.ListCandidates(ctx, identityFromContext(ctx), input.PostingID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-candidate",
		Method:      http.MethodPost,
		Path:        "/teamsync/candidates/{candidate_id}/stage",
		Summary:     "Move a candidate through the pipeline",
		Tags:        []string{"teamsync"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		CandidateID string                `path:"candidate_id"`
		Body        CandidateStageRequest `json:"body"`
	}) (*out[domain.Candidate], error) {
		c, err := e.MoveCandidate(ctx, identityFromContext(ctx), input.CandidateID, domain.CandidateStage(input.Body.Stage))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-contract",
		Method:        http.MethodPost,
		Path:          "/teamsync/contracts",
		Summary:       "Record an employment contract",
		Tags:          []string{"teamsync"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.ContractCreateOptions `json:"body"`
	}) (*out[domain.Contract], error) {
		c, err := e.CreateContract(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contracts",
		Method:      http.MethodGet,
		Path:        "/teamsync/contracts",
		Summary:     "List visible contracts",
		Tags:        []string{"teamsync"},
	}, func(ctx context.Context, input *struct {
		IdentityID string `query:"identity_id"`
	}) (*out[[]domain.Contract], error) {
		items, err := e.ListContracts(ctx, identityFromContext(ctx), input.IdentityID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "enroll-benefit",
		Method:        http.MethodPost,
		Path:          "/teamsync/benefits",
		Summary:       "Enroll an identity in a benefit",
		Tags:          []string{"teamsync"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.BenefitEnrollOptions `json:"body"`
	}) (*out[domain.Benefit], error) {
		b, err := e.EnrollBenefit(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(b), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-benefits",
		Method:      http.MethodGet,
		Path:        "/teamsync/benefits",
		Summary:     "List visible benefit enrollments",
		Tags:        []string{"teamsync"},
	}, func(ctx context.Context, input *struct {
		IdentityID string `query:"identity_id"`
	}) (*out[[]domain.Benefit], error) {
		items, err := e.ListBenefits(ctx, identityFromContext(ctx), input.IdentityID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-review",
		Method:        http.MethodPost,
		Path:          "/teamsync/reviews",
		Summary:       "Record a performance review",
		Tags:          []string{"teamsync"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.ReviewCreateOptions `json:"body"`
	}) (*out[domain.PerformanceReview], error) {
		r, err := e.RecordReview(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(r), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reviews",
		Method:      http.MethodGet,
		Path:        "/teamsync/reviews",
		Summary:     "List visible performance reviews",
		Tags:        []string{"teamsync"},
	}, func(ctx context.Context, input *struct {
		IdentityID string `query:"identity_id"`
	}) (*out[[]domain.PerformanceReview], error) {
		items, err := e.ListReviews(ctx, identityFromContext(ctx), input.IdentityID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "request-budget",
		Method:        http.MethodPost,
		Path:          "/teamsync/budget-requests",
		Summary:       "Request budget for a department",
		Tags:          []string{"teamsync"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body engine.BudgetRequestOptions `json:"body"`
	}) (*out[domain.BudgetRequest], error) {
		b, err := e.RequestBudget(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(b), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-budget-requests",
		Method:      http.MethodGet,
		Path:        "/teamsync/budget-requests",
		Summary:     "List visible budget requests",
		Tags:        []string{"teamsync"},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"pending,approved,rejected"`
	}) (*out[[]domain.BudgetRequest], error) {
		items, err := e.ListBudgetRequests(ctx, identityFromContext(ctx), domain.BudgetStatus(input.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decide-budget-request",
		Method:      http.MethodPost,
		Path:        "/teamsync/budget-requests/{request_id}/decision",
		Summary:     "Approve or reject a pending budget request",
		Tags:        []string{"teamsync"},
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		RequestID string                `path:"request_id"`
		Body      BudgetDecisionRequest `json:"body"`
	}) (*out[domain.BudgetRequest], error) {
		b, err := e.DecideBudgetRequest(ctx, identityFromContext(ctx), input.RequestID, input.Body.Approve)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(b), nil
	})
}

func registerChat(api huma.API, bus *chat.Bus) {
	huma.Register(api, huma.Operation{
		OperationID:   "send-message",
		Method:        http.MethodPost,
		Path:          "/chat/messages",
		Summary:       "Send a direct message or post to the department channel",
		Tags:          []string{"chat"},
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body chat.SendOptions `json:"body"`
	}) (*out[chat.Message], error) {
		msg, err := bus.Send(ctx, identityFromContext(ctx), input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(msg), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/chat/messages",
		Summary:     "Recent messages visible to the caller",
		Tags:        []string{"chat"},
	}, func(ctx context.Context, input *struct {
		Peer  string `query:"peer" doc:"limit to the direct conversation with this identity"`
		Limit int    `query:"limit" default:"50"`
	}) (*out[[]chat.Message], error) {
		return respond(bus.History(identityFromContext(ctx), input.Peer, normalizeLimit(input.Limit))), nil
	})
}

func registerSettings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "settings",
		Method:      http.MethodGet,
		Path:        "/settings",
		Summary:     "Dashboard windows and task policy in effect",
	}, func(ctx context.Context, _ *struct{}) (*out[SettingsResponse], error) {
		return respond(settingsResponse(e.Config)), nil
	})
}
