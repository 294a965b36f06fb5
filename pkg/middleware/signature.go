package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	apperrors "slotkeeper/pkg/errors"
	httputil "slotkeeper/pkg/http"
	"slotkeeper/pkg/logger"
	"strings"

	"github.com/julienschmidt/httprouter"
)

const SignatureHeader = "X-Signature-256"

// SignatureVerification guards machine-to-machine routes with an HMAC-SHA256
// of the raw body, sent as "sha256=<hex>".
func SignatureVerification(secret string, log *logger.Logger, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		signature, found := strings.CutPrefix(r.Header.Get(SignatureHeader), "sha256=")
		if !found || signature == "" {
			rejectSignature(w, r, log, "Missing "+SignatureHeader+" header")
			return
		}

		body, err := readAndRestoreBody(r)
		if err != nil {
			rejectSignature(w, r, log, "Failed to read request body")
			return
		}

		if !VerifySignature(body, signature, secret) {
			rejectSignature(w, r, log, "Invalid request signature")
			return
		}

		next(w, r, ps)
	}
}

func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(body []byte, receivedSignature, secret string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(receivedSignature))
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}

func rejectSignature(w http.ResponseWriter, r *http.Request, log *logger.Logger, reason string) {
	log.FromContext(r.Context()).Warn("Signature verification failed",
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	_ = httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
}
