package httpapi

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adalundhe/canvas/core/chat"
	"github.com/adalundhe/canvas/core/preview"
	"github.com/adalundhe/canvas/core/sandbox"
	"github.com/adalundhe/canvas/core/sanitize"
	"github.com/adalundhe/canvas/core/studio"
	"github.com/adalundhe/canvas/core/tokens"
	"github.com/adalundhe/canvas/core/transpile"
)

// chat streams the reply as plain text. Once the first chunk is written the
// status is fixed, so later failures are only logged.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req studio.ChatRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Chat-Id", req.ID)

	started := false
	_, err := s.studio.Chat(r.Context(), UserFrom(r.Context()), req, func(chunk string) error {
		started = true
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err == nil {
		return
	}
	if started {
		s.logger.Warn("chat failed after streaming began", "chat", req.ID, "err", err)
		return
	}
	w.Header().Del("X-Chat-Id")
	s.fail(w, r, err)
}

func (s *Server) designChat(w http.ResponseWriter, r *http.Request) {
	var req studio.DesignChatRequest
	if !decode(w, r, &req) {
		return
	}
	reply, err := s.studio.DesignChat(r.Context(), UserFrom(r.Context()), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type codeRequest struct {
	studio.CodeRequest
	// Surface, when set, renders the generated source on that surface.
	Surface string `json:"surface,omitempty"`
}

type codeResponse struct {
	studio.CodeResult
	Preview *sandbox.Outcome `json:"preview,omitempty"`
}

func (s *Server) generateCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "Missing prompt")
		return
	}
	user := UserFrom(r.Context())

	var (
		sf      *sandbox.Surface
		session *sandbox.Session
	)
	if req.Surface != "" {
		current, err := tokens.Load(r.Context(), s.studio.Tokens(), user)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		// Begin before the provider call so a newer render on the surface
		// supersedes this one.
		sf = s.engine.Manager().Surface(sandbox.SurfaceID(user, req.Surface))
		session = sf.Begin("", sandbox.NewSnapshot(current))
	}

	res, err := s.studio.GenerateCode(r.Context(), user, req.CodeRequest)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := codeResponse{CodeResult: res}

	if sf != nil {
		session.Source = res.Source
		out, err := s.engine.Apply(r.Context(), sf, session)
		switch {
		case err == nil:
			resp.Preview = &out
		case errors.Is(err, sandbox.ErrSessionSuperseded):
			// The code is still returned; a newer render owns the surface.
		default:
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type tokensBody struct {
	Tokens map[string]any `json:"tokens"`
}

func (s *Server) getTokens(w http.ResponseWriter, r *http.Request) {
	current, err := tokens.Load(r.Context(), s.studio.Tokens(), UserFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": current})
}

// setTokens merges the known string-valued keys of the body into the
// user's tokens.
func (s *Server) setTokens(w http.ResponseWriter, r *http.Request) {
	var body tokensBody
	if !decode(w, r, &body) {
		return
	}
	if body.Tokens == nil {
		writeError(w, http.StatusBadRequest, "Missing tokens")
		return
	}
	merged, err := tokens.Update(r.Context(), s.studio.Tokens(), UserFrom(r.Context()), tokens.Filter(body.Tokens))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": merged})
}

func (s *Server) getComponents(w http.ResponseWriter, r *http.Request) {
	classes, err := tokens.LoadComponents(r.Context(), s.studio.Tokens(), UserFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": classes})
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	list, err := s.studio.Chats().List(r.Context(), UserFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []chat.Transcript{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": list})
}

// getChat answers 404 for another user's transcript so ids cannot be probed.
func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	t, err := s.studio.Chats().Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, chat.ErrNotFound) || (err == nil && t.UserID != UserFrom(r.Context())) {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type previewRequest struct {
	Surface string `json:"surface"`
	Code    string `json:"code"`
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decode(w, r, &req) {
		return
	}
	user := UserFrom(r.Context())
	current, err := tokens.Load(r.Context(), s.studio.Tokens(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.engine.Preview(r.Context(), sandbox.SurfaceID(user, req.Surface), req.Code, current)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// frame serves the browser-isolated preview document for ?code=. With
// ?embed=1 the document is wrapped in a sandboxed iframe element.
func (s *Server) frame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	script, err := s.transpiler.Transpile(sanitize.Sanitize(q.Get("code")))
	if err != nil {
		var ce *transpile.CompileError
		if errors.As(err, &ce) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"compile_error": ce})
			return
		}
		s.fail(w, r, err)
		return
	}

	current, err := tokens.Load(r.Context(), s.studio.Tokens(), UserFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	doc, err := preview.Document(script, current)
	if err == nil && q.Get("embed") == "1" {
		doc, err = preview.Frame(doc, 0)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(doc))
}

func (s *Server) usage(w http.ResponseWriter, r *http.Request) {
	if s.usagePath == "" {
		http.Error(w, "usage.md not found", http.StatusNotFound)
		return
	}
	content, err := os.ReadFile(s.usagePath)
	if err != nil {
		http.Error(w, "usage.md not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(content)
}
