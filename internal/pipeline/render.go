package pipeline

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dhirajc963/timebrew.news/internal/models"
)

var emailTmpl = template.Must(template.New("brew").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Subject}}</title>
<style>
body { font-family: Georgia, serif; color: #2b2118; max-width: 640px; margin: 0 auto; }
h1 { font-size: 22px; } h2 { font-size: 18px; margin-bottom: 4px; }
.source { color: #7a6a58; font-size: 13px; }
</style>
</head>
<body>
<h1>{{.Subject}}</h1>
<p>Hi {{.Greeting}},</p>
<p>{{.Intro}}</p>
{{range .Articles}}<div class="article">
<h2>{{.Headline}}</h2>
<p>{{.Body}}</p>
{{if .URL}}<p class="source"><a href="{{.URL}}">{{if .Source}}{{.Source}}{{else}}Read more{{end}}</a></p>{{else if .Source}}<p class="source">{{.Source}}</p>{{end}}
</div>
{{end}}{{if .Outro}}<p>{{.Outro}}</p>
{{end}}<p class="source">{{.BrewName}}, delivered {{.Delivery}}.</p>
</body>
</html>
`))

type emailView struct {
	Subject  string
	Greeting string
	Intro    string
	Articles []DraftArticle
	Outro    string
	BrewName string
	Delivery string
}

func renderHTML(d Draft, brew *models.Brew, user *models.User) (string, error) {
	var buf bytes.Buffer
	err := emailTmpl.Execute(&buf, emailView{
		Subject:  d.Subject,
		Greeting: user.DisplayName(),
		Intro:    d.Intro,
		Articles: d.Articles,
		Outro:    d.Outro,
		BrewName: brew.Name,
		Delivery: models.ClockLabel(brew.DeliveryTime),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

var spaces = regexp.MustCompile(`\s+`)

// plainText derives the text/plain alternative from rendered HTML. Link
// targets are kept in parentheses after the link text.
func plainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("head, style, script").Remove()
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		// fragments include the #ZgotmplZ placeholder for rejected URLs
		if href != "" && !strings.HasPrefix(href, "#") && strings.TrimSpace(a.Text()) != href {
			a.AppendHtml(" (" + template.HTMLEscapeString(href) + ")")
		}
	})

	var b strings.Builder
	doc.Find("h1, h2, h3, p, li").Each(func(_ int, s *goquery.Selection) {
		txt := strings.TrimSpace(spaces.ReplaceAllString(s.Text(), " "))
		if txt == "" {
			return
		}
		if goquery.NodeName(s) == "h1" {
			txt = strings.ToUpper(txt)
		}
		b.WriteString(txt)
		b.WriteString("\n\n")
	})
	return strings.TrimSpace(b.String()) + "\n", nil
}
