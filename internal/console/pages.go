package console

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/felixgeelhaar/stockbook/internal/api"
	"github.com/felixgeelhaar/stockbook/internal/backend"
	"github.com/felixgeelhaar/stockbook/internal/domain"
	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
	"github.com/felixgeelhaar/stockbook/internal/guard"
	"github.com/felixgeelhaar/stockbook/internal/session"
	"github.com/felixgeelhaar/stockbook/internal/ux"
)

const layoutTmpl = `
{{define "head"}}<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}} · stockbook</title></head>
<body>
{{if .User}}<nav>
<a href="/">Home</a> <a href="/clients">Clients</a> <a href="/products">Products</a>
<a href="/warehouses">Warehouses</a> <a href="/transactions">Transactions</a>
<span>{{.User.Email}}</span>
<form method="post" action="/auth/logout"><button type="submit">Log out</button></form>
</nav>{{end}}
<main>
<h1>{{.Title}}</h1>
{{with .Notice}}<p class="notice">{{.}}</p>{{end}}
{{with .Error}}<p class="error">{{.}}</p>{{end}}
{{if .Fields}}<ul class="fields">{{range $field, $msgs := .Fields}}{{range $msgs}}<li>{{$field}}: {{.}}</li>{{end}}{{end}}</ul>{{end}}
{{end}}
{{define "foot"}}</main></body></html>
{{end}}
`

const loginTmpl = `{{template "head" .}}
<form method="post" action="/auth/login">
<label>Email <input type="email" name="email" value="{{.Email}}" required autofocus></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
<p><a href="/auth/register">Create an account</a></p>
{{template "foot" .}}`

const registerTmpl = `{{template "head" .}}
<form method="post" action="/auth/register">
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<label>First name <input name="first_name" value="{{.Form.FirstName}}"></label>
<label>Last name <input name="last_name" value="{{.Form.LastName}}"></label>
<label>Company <input name="company" value="{{.Form.Company}}"></label>
<button type="submit">Register</button>
</form>
<p><a href="/auth/login">Back to sign in</a></p>
{{template "foot" .}}`

const dashboardTmpl = `{{template "head" .}}
<dl>
<dt>Email</dt><dd>{{.User.Email}}</dd>
{{with .User.Profile}}{{with .FullName}}<dt>Name</dt><dd>{{.}}</dd>{{end}}{{with .Company}}<dt>Company</dt><dd>{{.}}</dd>{{end}}{{end}}
{{if .User.Roles}}<dt>Roles</dt><dd>{{range $i, $r := .User.Roles}}{{if $i}}, {{end}}{{$r.Name}}{{end}}</dd>{{end}}
</dl>
{{template "foot" .}}`

const tableTmpl = `{{template "head" .}}
{{if .Rows}}<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody>
</table>{{else if not .Error}}<p>No results.</p>{{end}}
{{template "foot" .}}`

type pages struct {
	byName map[string]*template.Template
}

func mustParsePages() *pages {
	p := &pages{byName: map[string]*template.Template{}}
	for name, body := range map[string]string{
		"login":     loginTmpl,
		"register":  registerTmpl,
		"dashboard": dashboardTmpl,
		"table":     tableTmpl,
	} {
		t := template.Must(template.New("layout").Parse(layoutTmpl))
		p.byName[name] = template.Must(t.New(name).Parse(body))
	}
	return p
}

type view struct {
	Title   string
	User    *domain.User
	Notice  string
	Error   string
	Fields  map[string][]string
	Email   string
	Form    backend.RegisterRequest
	Headers []string
	Rows    [][]string
}

func (c *Console) render(w http.ResponseWriter, status int, name string, v view) {
	var buf bytes.Buffer
	if err := c.pages.byName[name].ExecuteTemplate(&buf, name, v); err != nil {
		c.logger.WithError(err).Error("render page", "page", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// describe picks the message and field errors to show for err.
func describe(err error) (string, map[string][]string) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message, apiErr.Fields
	}
	var coded *sberrors.StockbookError
	if errors.As(err, &coded) {
		return coded.Message, nil
	}
	return err.Error(), nil
}

func (c *Console) loginForm(w http.ResponseWriter, r *http.Request) {
	v := view{Title: "Sign in", Email: r.URL.Query().Get("email")}
	switch {
	case r.URL.Query().Has("registered"):
		v.Notice = "Account created. Sign in to continue."
	case r.URL.Query().Has("expired"):
		v.Notice = "Your session has ended. Sign in again."
	}
	c.render(w, http.StatusOK, "login", v)
}

func (c *Console) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		c.render(w, http.StatusBadRequest, "login", view{Title: "Sign in", Error: "invalid form"})
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	v := view{Title: "Sign in", Email: email}

	if email == "" || password == "" {
		v.Error = "Email and password are required."
		c.render(w, http.StatusUnprocessableEntity, "login", v)
		return
	}

	res, err := c.api.Auth.Login(ctx, email, password)
	if err != nil {
		status := http.StatusBadGateway
		if api.IsAuthorization(err) {
			status = http.StatusUnauthorized
			v.Error = "Invalid email or password."
		} else {
			v.Error, v.Fields = describe(err)
			var apiErr *api.Error
			if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
				status = http.StatusUnprocessableEntity
			}
		}
		c.logger.WithError(err).InfoContext(ctx, "console login failed", "email", email)
		c.render(w, status, "login", v)
		return
	}

	if err := c.session.Login(ctx, res.User.Email, res.Token, session.WithDetails(res.User.User())); err != nil {
		c.logger.WithError(err).ErrorContext(ctx, "could not persist session")
		v.Error, _ = describe(err)
		c.render(w, http.StatusInternalServerError, "login", v)
		return
	}
	http.Redirect(w, r, guard.RootPath, http.StatusSeeOther)
}

func (c *Console) registerForm(w http.ResponseWriter, r *http.Request) {
	c.render(w, http.StatusOK, "register", view{Title: "Create account"})
}

func (c *Console) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		c.render(w, http.StatusBadRequest, "register", view{Title: "Create account", Error: "invalid form"})
		return
	}
	req := backend.RegisterRequest{
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		Password:  r.PostFormValue("password"),
		FirstName: strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:  strings.TrimSpace(r.PostFormValue("last_name")),
		Company:   strings.TrimSpace(r.PostFormValue("company")),
	}
	v := view{Title: "Create account", Email: req.Email, Form: req}
	v.Form.Password = ""

	if req.Email == "" || req.Password == "" {
		v.Error = "Email and password are required."
		c.render(w, http.StatusUnprocessableEntity, "register", v)
		return
	}

	if err := c.api.Auth.Register(r.Context(), req); err != nil {
		v.Error, v.Fields = describe(err)
		status := http.StatusBadGateway
		if len(v.Fields) > 0 {
			status = http.StatusUnprocessableEntity
		}
		c.render(w, status, "register", v)
		return
	}
	http.Redirect(w, r, guard.LoginPath+"?registered=1&email="+url.QueryEscape(req.Email), http.StatusSeeOther)
}

func (c *Console) logout(w http.ResponseWriter, r *http.Request) {
	if err := c.session.Logout(r.Context()); err != nil {
		c.logger.WithError(err).WarnContext(r.Context(), "logout left persisted data behind")
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (c *Console) dashboard(w http.ResponseWriter, r *http.Request) {
	st := c.session.Snapshot()
	c.render(w, http.StatusOK, "dashboard", view{Title: "Welcome", User: st.User})
}

func (c *Console) list(w http.ResponseWriter, r *http.Request, title string, fetch func(context.Context) (ux.Tabular, error)) {
	v := view{Title: title, User: c.session.Snapshot().User}

	tab, err := fetch(r.Context())
	if err != nil {
		if api.IsAuthorization(err) {
			http.Redirect(w, r, guard.LoginPath+"?expired=1", http.StatusSeeOther)
			return
		}
		c.logger.WithError(err).WarnContext(r.Context(), "list failed", "page", title)
		v.Error, _ = describe(err)
		c.render(w, http.StatusBadGateway, "table", v)
		return
	}

	v.Headers, v.Rows = tab.Headers(), tab.Rows()
	c.render(w, http.StatusOK, "table", v)
}

func (c *Console) clients(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, "Clients", func(ctx context.Context) (ux.Tabular, error) {
		items, err := c.api.Clients.List(ctx, r.URL.Query())
		return ux.ClientTable(items), err
	})
}

func (c *Console) products(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, "Products", func(ctx context.Context) (ux.Tabular, error) {
		items, err := c.api.Products.List(ctx, r.URL.Query())
		return ux.ProductTable(items), err
	})
}

func (c *Console) warehouses(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, "Warehouses", func(ctx context.Context) (ux.Tabular, error) {
		items, err := c.api.Warehouses.List(ctx, r.URL.Query())
		return ux.WarehouseTable(items), err
	})
}

func (c *Console) transactions(w http.ResponseWriter, r *http.Request) {
	c.list(w, r, "Transactions", func(ctx context.Context) (ux.Tabular, error) {
		items, err := c.api.Transactions.List(ctx, r.URL.Query())
		return ux.TransactionTable(items), err
	})
}
