package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ragcore/ragcore"
	"github.com/ragcore/ragcore/embedstrategy"
	"github.com/ragcore/ragcore/ingest"
	"github.com/ragcore/ragcore/parser"
	"github.com/ragcore/ragcore/search"
	"github.com/ragcore/ragcore/store"
)

type handler struct {
	store   *store.Store
	orch    *ingest.Orchestrator
	search  *search.Engine
	parsers *parser.Registry
	cfg     ragcore.Config
}

func newHandler(st *store.Store, orch *ingest.Orchestrator, se *search.Engine, parsers *parser.Registry, cfg ragcore.Config) *handler {
	return &handler{store: st, orch: orch, search: se, parsers: parsers, cfg: cfg}
}

func (h *handler) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/libraries", h.createLibrary)
	mux.HandleFunc("GET /api/v1/libraries/{uuid}", h.getLibrary)
	mux.HandleFunc("DELETE /api/v1/libraries/{uuid}", h.deleteLibrary)

	mux.HandleFunc("POST /api/v1/documents/upload/text", h.uploadText)
	mux.HandleFunc("POST /api/v1/documents/upload/url", h.uploadURL)
	mux.HandleFunc("POST /api/v1/documents/upload/file", h.uploadFile)
	mux.HandleFunc("POST /api/v1/documents/{id}/process", h.processDocument)
	mux.HandleFunc("GET /api/v1/documents/{id}/status", h.documentStatus)
	mux.HandleFunc("POST /api/v1/documents/{id}/status", h.toggleDocumentActive)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.deleteDocument)

	mux.HandleFunc("POST /api/v1/search/hybrid", h.searchHybrid)
	mux.HandleFunc("POST /api/v1/search/semantic", h.searchSemantic)
	mux.HandleFunc("POST /api/v1/search/textual", h.searchTextual)

	mux.HandleFunc("POST /api/v1/user-libraries", h.createUserLibrary)
	mux.HandleFunc("GET /health", h.health)
}

// --- libraries ---

type createLibraryRequest struct {
	Name     string         `json:"name"`
	Area     string         `json:"area"`
	WSem     float64        `json:"w_sem"`
	WTxt     float64        `json:"w_txt"`
	Metadata map[string]any `json:"metadata"`
}

func (h *handler) createLibrary(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: invalid JSON body", ragcore.ErrValidation))
		return
	}
	if req.Name == "" {
		writeTaxonomyError(w, fmt.Errorf("%w: name is required", ragcore.ErrValidation))
		return
	}
	if !weightsSumToOne(req.WSem, req.WTxt) {
		writeTaxonomyError(w, fmt.Errorf("%w: w_sem + w_txt must equal 1.0", ragcore.ErrValidation))
		return
	}

	lib, err := h.store.CreateLibrary(r.Context(), store.Library{
		Name: req.Name, Area: req.Area, WSem: req.WSem, WTxt: req.WTxt, Metadata: req.Metadata,
	})
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lib)
}

func (h *handler) getLibrary(w http.ResponseWriter, r *http.Request) {
	lib, err := h.store.GetLibraryByUUID(r.Context(), r.PathValue("uuid"))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (h *handler) deleteLibrary(w http.ResponseWriter, r *http.Request) {
	hard := r.URL.Query().Get("hard") == "true"
	if err := h.store.DeleteLibrary(r.Context(), r.PathValue("uuid"), hard); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- document upload ---

type uploadTextRequest struct {
	LibraryUUID string         `json:"library_uuid"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	ContentType string         `json:"content_type"`
	Metadata    map[string]any `json:"metadata"`
}

func (h *handler) uploadText(w http.ResponseWriter, r *http.Request) {
	var req uploadTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: invalid JSON body", ragcore.ErrValidation))
		return
	}
	if req.Content == "" {
		writeTaxonomyError(w, fmt.Errorf("%w: content is required", ragcore.ErrValidation))
		return
	}
	lib, err := h.store.GetLibraryByUUID(r.Context(), req.LibraryUUID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	doc, err := h.store.CreateDocument(r.Context(), store.Document{
		LibraryID: lib.ID, Title: req.Title, ContentMarkdown: req.Content,
		ContentType: req.ContentType, Metadata: req.Metadata,
	})
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

type uploadURLRequest struct {
	LibraryUUID string         `json:"library_uuid"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	ContentType string         `json:"content_type"`
	Metadata    map[string]any `json:"metadata"`
}

func (h *handler) uploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: invalid JSON body", ragcore.ErrValidation))
		return
	}
	if req.URL == "" {
		writeTaxonomyError(w, fmt.Errorf("%w: url is required", ragcore.ErrValidation))
		return
	}
	lib, err := h.store.GetLibraryByUUID(r.Context(), req.LibraryUUID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: invalid url: %v", ragcore.ErrValidation, err))
		return
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: fetching url: %v", ragcore.ErrTransientExternal, err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		writeTaxonomyError(w, fmt.Errorf("%w: fetching url returned status %d", ragcore.ErrTransientExternal, resp.StatusCode))
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20))
	if err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: reading url body: %v", ragcore.ErrTransientExternal, err))
		return
	}

	result, err := parser.ParseHTMLBytes(body)
	if err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: parsing url content: %v", ragcore.ErrPipelineFatal, err))
		return
	}
	content, title := parser.ToMarkdown(result)
	if req.Title != "" {
		title = req.Title
	}

	doc, err := h.store.CreateDocument(r.Context(), store.Document{
		LibraryID: lib.ID, Title: title, ContentMarkdown: content,
		ContentType: req.ContentType, Metadata: req.Metadata,
	})
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *handler) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: invalid multipart form: %v", ragcore.ErrValidation, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: file field is required", ragcore.ErrValidation))
		return
	}
	defer file.Close()

	libraryUUID := r.FormValue("library_uuid")
	lib, err := h.store.GetLibraryByUUID(r.Context(), libraryUUID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	p, err := h.parsers.Get(ext)
	if err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: unsupported file format %q", ragcore.ErrValidation, ext))
		return
	}

	tmpPath, cleanup, err := spoolToTemp(file, header.Filename)
	if err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: %v", ragcore.ErrTransientExternal, err))
		return
	}
	defer cleanup()

	result, err := p.Parse(r.Context(), tmpPath)
	if err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: parsing file: %v", ragcore.ErrPipelineFatal, err))
		return
	}
	content, title := parser.ToMarkdown(result)
	if t := r.FormValue("title"); t != "" {
		title = t
	}

	doc, err := h.store.CreateDocument(r.Context(), store.Document{
		LibraryID: lib.ID, Title: title, ContentMarkdown: content,
		ContentType: r.FormValue("content_type"),
	})
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// --- ingestion ---

func (h *handler) processDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	lib, err := h.store.GetLibraryByID(r.Context(), doc.LibraryID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	opts := ingest.DefaultOptions()
	opts.IncludeQA = r.URL.Query().Get("includeQA") == "true"
	opts.IncludeSummary = r.URL.Query().Get("includeSummary") == "true"
	opts.Resolution = embedstrategy.ModelResolution{
		EmbeddingLibraryDefault:  stringMeta(lib.Metadata, "default_embedding_model"),
		EmbeddingGlobalDefault:   h.cfg.DefaultEmbeddingModel,
		CompletionLibraryDefault: stringMeta(lib.Metadata, "default_completion_model"),
		CompletionGlobalDefault:  h.cfg.DefaultCompletionModel,
	}

	h.orch.Submit(id, opts)
	writeJSON(w, http.StatusAccepted, map[string]any{"document_id": id, "status": "PROCESSING"})
}

func (h *handler) documentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handler) toggleDocumentActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	active := r.URL.Query().Get("flagVigente") == "true"
	if err := h.store.SetDocumentActive(r.Context(), id, active); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- search ---

type searchRequest struct {
	Query      string   `json:"query"`
	LibraryIDs []int64  `json:"library_ids"`
	Limit      int      `json:"limit"`
	WSem       *float64 `json:"w_sem,omitempty"`
	WTxt       *float64 `json:"w_txt,omitempty"`
	ActiveOnly bool     `json:"active_only"`
}

func (h *handler) searchHybrid(w http.ResponseWriter, r *http.Request) {
	h.doSearch(w, r, search.ModeHybrid)
}

func (h *handler) searchSemantic(w http.ResponseWriter, r *http.Request) {
	h.doSearch(w, r, search.ModeSemantic)
}

func (h *handler) searchTextual(w http.ResponseWriter, r *http.Request) {
	h.doSearch(w, r, search.ModeTextual)
}

func (h *handler) doSearch(w http.ResponseWriter, r *http.Request, mode search.Mode) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: invalid JSON body", ragcore.ErrValidation))
		return
	}
	if len(req.LibraryIDs) == 0 {
		writeTaxonomyError(w, fmt.Errorf("%w: library_ids is required", ragcore.ErrValidation))
		return
	}

	results, err := h.search.Search(r.Context(), search.Request{
		Query:      req.Query,
		LibraryIDs: req.LibraryIDs,
		Limit:      req.Limit,
		WSem:       req.WSem,
		WTxt:       req.WTxt,
		ActiveOnly: req.ActiveOnly,
		Mode:       mode,
		Resolution: embedstrategy.ModelResolution{EmbeddingGlobalDefault: h.cfg.DefaultEmbeddingModel},
	})
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// --- user-library associations ---

type createUserLibraryRequest struct {
	UserID    string `json:"user_id"`
	LibraryID int64  `json:"library_id"`
	Role      string `json:"role"`
}

func (h *handler) createUserLibrary(w http.ResponseWriter, r *http.Request) {
	var req createUserLibraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTaxonomyError(w, fmt.Errorf("%w: invalid JSON body", ragcore.ErrValidation))
		return
	}
	switch req.Role {
	case store.RoleOwner, store.RoleCollaborator, store.RoleReader:
	default:
		writeTaxonomyError(w, fmt.Errorf("%w: invalid role %q", ragcore.ErrValidation, req.Role))
		return
	}
	if err := h.store.CreateUserLibraryAssociation(r.Context(), store.UserLibraryAssociation{
		UserID: req.UserID, LibraryID: req.LibraryID, Role: req.Role,
	}); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func pathInt64(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", ragcore.ErrValidation, name)
	}
	return id, nil
}

func stringMeta(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func weightsSumToOne(wSem, wTxt float64) bool {
	const eps = 1e-6
	sum := wSem + wTxt
	return sum > 1.0-eps && sum < 1.0+eps
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// writeTaxonomyError maps err to the uniform error shape of section 6
// ({code, message, timestamp}) via ragcore.Code/StatusCode.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	writeJSON(w, ragcore.StatusCode(err), apiError{
		Code:      ragcore.Code(err),
		Message:   err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
