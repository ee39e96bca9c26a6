package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"wgpanel/internal/logs"
	"wgpanel/internal/models"
)

// Recoverer logs a handler panic with the request's fields and answers 500
// with the request id, so an operator can find the stack. http.ErrAbortHandler
// is re-raised for net/http to abort the connection quietly.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			reqid := GetRequestID(r)
			logs.Component("http").WithFields(logrus.Fields{
				"reqid":  reqid,
				"method": r.Method,
				"uri":    r.RequestURI,
				"ip":     r.RemoteAddr,
				"panic":  rec,
				"stack":  string(debug.Stack()),
			}).Error("handler panicked")
			models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error",
				"unexpected server error, see logs for reqid "+reqid, map[string]any{"reqid": reqid})
		}()
		next.ServeHTTP(w, r)
	})
}
