package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mybrainlabs/recall/internal/llm"
	"github.com/mybrainlabs/recall/internal/router"
	"github.com/mybrainlabs/recall/internal/store"
)

const answerSystemPrompt = `You are a personal memory assistant. Answer the user's question using only the provided excerpts from their recorded conversations, videos, and notes. Quote or reference the source material where it helps. If the excerpts do not contain the answer, say so plainly. Answer in the language of the question.`

type answer struct {
	Text     string `json:"answer"`
	Model    string `json:"model,omitempty"`
	Sources  int    `json:"sources"`
	Degraded bool   `json:"degraded,omitempty"`
}

// answerQuestion runs the full read path: retrieve, rerank, route, and
// invoke the selected answer model.
func (s *Server) answerQuestion(ctx context.Context, r *http.Request, question string, filter *store.Filter) (*answer, error) {
	if s.providers == nil {
		return nil, fmt.Errorf("no answer provider configured")
	}

	res, err := s.retrieve(r, question, filter, s.cfg.RerankLimit)
	if err != nil {
		return nil, err
	}

	req, err := s.answers.Route(ctx, question, res.Candidates)
	if err != nil {
		return nil, fmt.Errorf("routing question: %w", err)
	}
	if req.NoInformation {
		return &answer{Text: router.NoInformationAnswer, Degraded: res.Degraded}, nil
	}

	provider, err := s.providers(req.Model)
	if err != nil {
		return nil, fmt.Errorf("resolving provider for %s: %w", req.Model, err)
	}

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Model: req.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: answerSystemPrompt},
			{Role: llm.RoleUser, Content: "Excerpts:\n\n" + req.Context + "\n\nQuestion: " + question},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("answer model %s: %w", req.Model, err)
	}

	return &answer{
		Text:     resp.Content,
		Model:    req.Model,
		Sources:  len(res.Candidates),
		Degraded: res.Degraded,
	}, nil
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ans, err := s.answerQuestion(r.Context(), r, req.Question, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
