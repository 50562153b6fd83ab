package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Feature is one card on the landing page.
type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Features are the landing page cards.
var Features = []Feature{
	{Title: "Enhanced Analytics", Description: "Advanced trading metrics and insights"},
	{Title: "Real-time Updates", Description: "Live market data integration"},
	{Title: "Smart Automation", Description: "Automated trading workflows"},
	{Title: "Security Features", Description: "Advanced encryption and protection"},
}

// LandingLinks are the targets of the landing page buttons.
type LandingLinks struct {
	Add    string
	Manage string
}

type landingPage struct {
	Links    LandingLinks
	Features []Feature
}

// RegisterLanding serves the landing page at / and its cards at /api/features.
// Both are public. Empty links point at the API docs.
func RegisterLanding(r *gin.Engine, links LandingLinks) {
	if links.Add == "" {
		links.Add = "/swagger/index.html"
	}
	if links.Manage == "" {
		links.Manage = "/swagger/index.html"
	}
	page := landingPage{Links: links, Features: Features}
	r.GET("/", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := landingTmpl.Execute(c.Writer, page); err != nil {
			_ = c.Error(err)
		}
	})
	r.GET("/api/features", func(c *gin.Context) {
		c.JSON(http.StatusOK, Features)
	})
}

var landingTmpl = template.Must(template.New("landing").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>What's New in TradeXpert</title>
  </head>
  <body>
    <nav>TradeXpert</nav>
    <main>
      <h1>What's New in <span>TradeXpert</span></h1>
      <p>Discover the latest updates and improvements in our trading administration platform.
      Stay ahead with our cutting-edge tools and enhanced features.</p>
      <a href="{{.Links.Add}}">Add New Data</a>
      <a href="{{.Links.Manage}}">Manage Database</a>
      <section class="features">
        {{- range .Features}}
        <div class="feature"><h3>{{.Title}}</h3><p>{{.Description}}</p></div>
        {{- end}}
      </section>
    </main>
  </body>
</html>`))
