package cookie

import (
	"io"
	"net/http"

	"github.com/felixge/httpsnoop"
)

// Middleware rewrites Set-Cookie headers on every response for host.
//
// The ResponseWriter is decorated rather than modified: the header map is
// rewritten right before it is committed, whichever of WriteHeader, Write,
// ReadFrom or Flush happens first, and once more after the handler returns
// for responses that never wrote anything.
func Middleware(host string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := &committer{header: w.Header(), host: host}

			hooked := httpsnoop.Wrap(w, httpsnoop.Hooks{
				WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
					return func(code int) {
						// 1xx responses are not final; headers may still change.
						if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
							RewriteHeader(c.header, c.host)
						} else {
							c.commit()
						}
						next(code)
					}
				},
				Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
					return func(b []byte) (int, error) {
						c.commit()
						return next(b)
					}
				},
				ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
					return func(src io.Reader) (int64, error) {
						c.commit()
						return next(src)
					}
				},
				Flush: func(next httpsnoop.FlushFunc) httpsnoop.FlushFunc {
					return func() {
						c.commit()
						next()
					}
				},
			})

			next.ServeHTTP(hooked, r)
			c.commit()
		})
	}
}

// committer rewrites the header map at most once per response.
type committer struct {
	header http.Header
	host   string
	done   bool
}

func (c *committer) commit() {
	if c.done {
		return
	}
	c.done = true
	RewriteHeader(c.header, c.host)
}
