// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-session/oidc"
)

// silentCheckPage is served into the hidden frame.  There's nothing for the
// frame to show: the outcome reaches the waiting session check through the
// Completer.
const silentCheckPage = `<!DOCTYPE html>
<html>
<body>
<script>parent.postMessage(location.href, location.origin);</script>
</body>
</html>
`

// SilentCheck creates the handler for the silent check redirect URI.  It
// completes the prompt=none request the hidden frame was loaded for, with
// either a code or an error like login_required, and always answers with a
// small static page.
func SilentCheck(ctx context.Context, c oidc.Completer) (http.HandlerFunc, error) {
	const op = "callback.SilentCheck"
	if c == nil {
		return nil, fmt.Errorf("%s: completer is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		// errors reach the waiting check, the frame shows nothing either way
		_ = oidc.Complete(ctx, c, req.URL.String())

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(silentCheckPage))
	}, nil
}
