package http

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/monaca/localkit/internal/domain/entities"
	"github.com/monaca/localkit/internal/domain/ports"
)

// envelope is the JSON body shape every API response uses.
type envelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// handlePairingRequest establishes a pairing. Two flows share the route:
// a request token exchanged through the account service, or a one-time
// password hash redeemed against the OTP table. The response is plaintext
// because the caller has no key yet.
func (s *Server) handlePairingRequest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientIDHash := q.Get("clientIdHash")
	requestToken := q.Get("requestToken")
	passwordHash := q.Get("passwordHash")

	if clientIDHash == "" || (requestToken == "" && passwordHash == "") {
		s.writePlain(w, http.StatusBadRequest, envelope{
			Status:  "fail",
			Code:    http.StatusBadRequest,
			Message: "requestToken or passwordHash and clientIdHash are required",
		})
		return
	}

	var err error
	if passwordHash != "" {
		err = s.redeemOneTimePassword(passwordHash, clientIDHash)
	} else {
		_, err = s.pairings.RequestPairingKey(r.Context(), requestToken, clientIDHash)
	}
	if err != nil {
		s.writeError(w, "", err)
		return
	}

	s.writePlain(w, http.StatusOK, envelope{
		Status: "ok",
		Code:   http.StatusOK,
		Result: map[string]any{
			"serverName": s.name,
			"serverId":   s.serverID,
			"version":    s.version,
		},
	})
}

func (s *Server) redeemOneTimePassword(passwordHash, clientIDHash string) error {
	if _, err := s.otp.Validate(passwordHash); err != nil {
		return err
	}

	key, err := s.otp.GeneratePairingKey()
	if err != nil {
		return err
	}
	return s.pairings.Put(clientIDHash, key)
}

// handlePairingOTP issues a fresh one-time password for pairing another
// device, for example by showing its secret as a QR code.
func (s *Server) handlePairingOTP(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())

	ttl := int64(defaultOTPTTL / time.Millisecond)
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, key, entities.ErrInvalidArgument)
			return
		}
		ttl = parsed
	}

	otp, err := s.otp.Generate(ttl)
	if err != nil {
		s.writeError(w, key, err)
		return
	}

	s.writeEncrypted(w, key, envelope{
		Status: "ok",
		Code:   http.StatusOK,
		Result: map[string]any{
			"secret":    hex.EncodeToString(otp.Secret),
			"hash":      otp.Hash,
			"expiresAt": otp.ExpiresAt.UnixMilli(),
		},
	})
}

// handleProjects lists tracked projects enriched with remote metadata.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())

	projects := s.registry.List()
	out := make([]ports.ProjectInfo, 0, len(projects))
	for _, p := range projects {
		info, err := s.projectInfo.Describe(r.Context(), p.ID, p.Path)
		if err != nil {
			// Metadata lookup failures degrade to the local view.
			s.logger.Warn("describing project",
				slog.String("project_id", p.ID),
				slog.String("error", err.Error()),
			)
			info = ports.ProjectInfo{ProjectID: p.ID, Name: p.Name}
		}
		out = append(out, info)
	}

	s.writeEncrypted(w, key, envelope{Status: "ok", Code: http.StatusOK, Result: out})
}

// handleFileTree returns the filtered file listing of one project.
func (s *Server) handleFileTree(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())

	project, ok := s.registry.ByID(mux.Vars(r)["project_id"])
	if !ok {
		s.writeError(w, key, entities.ErrNotFound)
		return
	}

	nodes, err := s.files.Tree(s.registry.ContentRoot(project))
	if err != nil {
		s.writeError(w, key, err)
		return
	}

	s.writeEncrypted(w, key, envelope{
		Status: "ok",
		Code:   http.StatusOK,
		Result: map[string]any{"items": nodes},
	})
}

// handleFileRead streams one project file's bytes, encrypted, as an
// octet-stream. The request body is the encrypted JSON `{"path": ...}`.
func (s *Server) handleFileRead(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())

	project, ok := s.registry.ByID(mux.Vars(r)["project_id"])
	if !ok {
		s.writeError(w, key, entities.ErrNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxReadBody))
	if err != nil {
		s.writeError(w, key, entities.ErrInvalidArgument)
		return
	}

	plain, err := s.codec.DecryptString(string(body), key)
	if err != nil {
		s.writeError(w, key, err)
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(plain), &req); err != nil || req.Path == "" {
		s.writeError(w, key, entities.ErrInvalidArgument)
		return
	}

	content, err := s.files.Read(s.registry.ContentRoot(project), req.Path)
	if err != nil {
		s.writeError(w, key, err)
		return
	}

	cipher, err := s.codec.Encrypt(content, key)
	if err != nil {
		s.writeError(w, key, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cipher)
}

// handleInspect forwards a remote-inspection query to the debugger
// collaborator.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	key := keyFromContext(r.Context())

	query := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}

	result, err := s.inspector.Inspect(r.Context(), query)
	if err != nil {
		s.writeError(w, key, err)
		return
	}

	s.writeEncrypted(w, key, envelope{Status: "ok", Code: http.StatusOK, Result: result})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writePlain(w, http.StatusNotFound, envelope{
		Status:  "fail",
		Code:    http.StatusNotFound,
		Message: "no such route",
	})
}

// statusFor maps domain errors onto HTTP status codes. The mapping lives
// only here; services never see HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrExpired):
		return http.StatusGone
	case errors.Is(err, entities.ErrOutOfBounds):
		return http.StatusForbidden
	case errors.Is(err, entities.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, entities.ErrDecode), errors.Is(err, entities.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, key string, err error) {
	status := statusFor(err)
	body := envelope{Status: "fail", Code: status, Message: err.Error()}

	if key == "" {
		s.writePlain(w, status, body)
		return
	}
	s.writeEncryptedStatus(w, status, key, body)
}

func (s *Server) writeUnauthorized(w http.ResponseWriter) {
	s.writePlain(w, http.StatusUnauthorized, envelope{
		Status:  "fail",
		Code:    http.StatusUnauthorized,
		Message: "pairing required",
	})
}

func (s *Server) writePlain(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("writing response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeEncrypted(w http.ResponseWriter, key string, body envelope) {
	s.writeEncryptedStatus(w, http.StatusOK, key, body)
}

// writeEncryptedStatus JSON-encodes the envelope, encrypts it with the
// caller's pairing key, and writes the raw ciphertext.
func (s *Server) writeEncryptedStatus(w http.ResponseWriter, status int, key string, body envelope) {
	payload, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	cipher, err := s.codec.Encrypt(payload, key)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(status)
	if _, err := w.Write(cipher); err != nil {
		s.logger.Error("writing response", slog.String("error", err.Error()))
	}
}
