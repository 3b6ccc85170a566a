package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Hrithik-12/Microgpt/pkg/model"
)

const (
	defaultTemperature = 0.5
	defaultCount       = 5
	maxCount           = 50
)

type server struct {
	logger *slog.Logger
	delay  time.Duration

	// mu serializes generation: the model's random generator is shared.
	mu    sync.Mutex
	model *model.Model

	encMu    sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

func newServer(m *model.Model, logger *slog.Logger, delay time.Duration) *server {
	return &server{
		logger:   logger,
		delay:    delay,
		model:    m,
		encoders: map[string]*tiktoken.Tiktoken{},
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/generate/stream", s.handleGenerateStream)
	mux.HandleFunc("/tokenize", s.handleTokenize)
	mux.HandleFunc("/vocab", s.handleVocab)
	return withCORS(s.withLogging(mux))
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery, "elapsed", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error    string `json:"error"`
	Char     string `json:"char,omitempty"`
	Position *int   `json:"position,omitempty"`
}

func errorBody(err error) errorResponse {
	var uce *model.UnknownCharError
	if errors.As(err, &uce) {
		pos := uce.Position
		return errorResponse{Error: err.Error(), Char: string(uce.Char), Position: &pos}
	}
	return errorResponse{Error: err.Error()}
}

func allowGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return false
	}
	return true
}

func parseTemperature(r *http.Request) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("temperature"))
	if raw == "" {
		return defaultTemperature, nil
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid temperature %q", raw)
	}
	if !(t > 0) {
		return 0, fmt.Errorf("%w (got %v)", model.ErrInvalidTemperature, t)
	}
	return t, nil
}

func parseCount(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("count"))
	if raw == "" {
		return defaultCount, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxCount {
		return 0, fmt.Errorf("invalid count %q: must be 1..%d", raw, maxCount)
	}
	return n, nil
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "microGPT API running",
		"endpoints": map[string]string{
			"/generate":        "GET - generate startup names",
			"/generate/stream": "GET - stream one generation step by step (SSE)",
			"/tokenize":        "GET - tokenize a prefix",
			"/vocab":           "GET - get vocabulary info",
		},
	})
}

type generateResponse struct {
	Prefix      string   `json:"prefix"`
	Temperature float64  `json:"temperature"`
	Results     []string `json:"results"`
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !allowGET(w, r) {
		return
	}
	prefix := r.URL.Query().Get("prefix")
	temperature, err := parseTemperature(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	count, err := parseCount(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]string, 0, count)
	for i := 0; i < count; i++ {
		name, err := s.model.Generate(prefix, temperature)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err))
			return
		}
		results = append(results, name)
	}
	writeJSON(w, http.StatusOK, generateResponse{Prefix: prefix, Temperature: temperature, Results: results})
}

type streamEvent struct {
	Type   string           `json:"type"`
	Probs  []model.CharProb `json:"probs,omitempty"`
	Char   string           `json:"char,omitempty"`
	Word   string           `json:"word,omitempty"`
	Result *string          `json:"result,omitempty"`

	Error    string `json:"error,omitempty"`
	Position *int   `json:"position,omitempty"`
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, ev streamEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// handleGenerateStream sends, per position, a probs event then a char
// event, and finally one done event with the whole word.
func (s *server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	if !allowGET(w, r) {
		return
	}
	prefix := r.URL.Query().Get("prefix")
	temperature, err := parseTemperature(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	pause := func() error {
		if s.delay <= 0 {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
			return nil
		}
	}

	// only sampling touches the shared rng; pacing and writes run unlocked
	var steps []model.StepEvent
	s.mu.Lock()
	vocab := s.model.Vocab
	_, err = s.model.GenerateStream(prefix, temperature, func(ev model.StepEvent) error {
		steps = append(steps, ev)
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		body := errorBody(err)
		if serr := sendSSE(w, flusher, streamEvent{Type: "error", Error: body.Error, Char: body.Char, Position: body.Position}); serr != nil {
			s.logger.Warn("stream error not delivered", "err", serr)
		}
		return
	}

	emit := func(ev model.StepEvent) error {
		if ev.Done {
			result := ev.Word
			return sendSSE(w, flusher, streamEvent{Type: "done", Result: &result})
		}
		if err := sendSSE(w, flusher, streamEvent{Type: "probs", Probs: vocab.Distribution(ev.Probs)}); err != nil {
			return err
		}
		if err := pause(); err != nil {
			return err
		}
		if ev.Char == "" {
			return nil
		}
		if err := sendSSE(w, flusher, streamEvent{Type: "char", Char: ev.Char, Word: ev.Word}); err != nil {
			return err
		}
		return pause()
	}
	for _, ev := range steps {
		if err := emit(ev); err != nil {
			s.logger.Debug("stream client gone", "prefix", prefix, "err", err)
			return
		}
	}
}

type bpeComparison struct {
	Encoding string `json:"encoding"`
	IDs      []int  `json:"ids"`
}

type tokenizeResponse struct {
	Text   string         `json:"text"`
	Tokens []model.Token  `json:"tokens"`
	BPE    *bpeComparison `json:"bpe,omitempty"`
}

func (s *server) handleTokenize(w http.ResponseWriter, r *http.Request) {
	if !allowGET(w, r) {
		return
	}
	q := r.URL.Query()
	text := q.Get("text")
	resp := tokenizeResponse{
		Text:   text,
		Tokens: s.model.Vocab.Tokenize(strings.ToLower(text)),
	}
	if name := strings.TrimSpace(q.Get("compare")); name != "" {
		enc, err := s.encoder(name)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("bpe encoding %q: %v", name, err)})
			return
		}
		resp.BPE = &bpeComparison{Encoding: name, IDs: enc.Encode(text, nil, nil)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// encoder loads a tiktoken encoding once and keeps it for later requests.
func (s *server) encoder(name string) (*tiktoken.Tiktoken, error) {
	s.encMu.Lock()
	defer s.encMu.Unlock()
	if enc, ok := s.encoders[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	s.encoders[name] = enc
	return enc, nil
}

type vocabResponse struct {
	UniqueChars []string `json:"unique_chars"`
	VocabSize   int      `json:"vocab_size"`
	BOS         int      `json:"BOS"`
}

func (s *server) handleVocab(w http.ResponseWriter, r *http.Request) {
	if !allowGET(w, r) {
		return
	}
	v := s.model.Vocab
	writeJSON(w, http.StatusOK, vocabResponse{UniqueChars: v.Strings(), VocabSize: v.Size(), BOS: v.BOS()})
}
