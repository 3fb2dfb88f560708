package httpapi

import (
	"html/template"
	"net/http"
)

// GET on a verification link only renders this page. Link scanners and
// mail previews follow GETs, so the token is spent by the POST it submits.
var confirmPage = template.Must(template.New("confirm").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Confirm your email</title></head>
<body>
<p>Confirm the email address on your account.</p>
<form method="post" action="{{.Action}}">
<button type="submit">Confirm email</button>
</form>
</body>
</html>
`))

func confirmEmailPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(http.StatusOK)
	_ = confirmPage.Execute(w, struct{ Action string }{Action: r.URL.Path})
}
