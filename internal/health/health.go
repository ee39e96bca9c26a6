package health

import (
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// Checker reports whether a dependency is ready to serve.
type Checker func() error

// RegisterRoutes mounts /healthz (liveness) and /readyz, which runs every
// check and answers 503 on the first failure.
func RegisterRoutes(r *mux.Router, checks ...Checker) {
	r.HandleFunc("/healthz", ok).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		for _, c := range checks {
			if err := c(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		ok(w, nil)
	}).Methods(http.MethodGet)
}

// DB checks that the database answers a ping.
func DB(db *gorm.DB) Checker {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	}
}

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
