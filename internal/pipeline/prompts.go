package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/dhirajc963/timebrew.news/internal/ai"
	"github.com/dhirajc963/timebrew.news/internal/models"
)

// GenerationSettings are the per-stage knobs passed to the provider.
type GenerationSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func CuratorDefaults() GenerationSettings {
	return GenerationSettings{Temperature: 0.2, MaxTokens: 4000, Timeout: 60 * time.Second}
}

func EditorDefaults() GenerationSettings {
	return GenerationSettings{Temperature: 0.7, MaxTokens: 3000, Timeout: 60 * time.Second}
}

func (g GenerationSettings) request(msgs ...ai.Message) ai.Request {
	return ai.Request{
		Messages:    msgs,
		Model:       g.Model,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
		Timeout:     g.Timeout,
	}
}

const curatorSystem = `You are the curator for TimeBrew, a personal news briefing.
Find the most relevant, recent news for the reader's topics and return ONLY a JSON object:
{"articles":[{"headline":"","summary":"","source":"","url":"","published_time":"","relevance":""}],"curator_notes":""}
Rules: at most 8 articles, newest first; every url must point at the original story;
published_time is a short human label such as "3 hours ago"; use curator_notes to tell
the editor when coverage is thin or a topic had no news.`

const editorSystem = `You are the editor for TimeBrew. Turn the curator's findings into a short,
warm email briefing and return ONLY a JSON object:
{"subject":"","intro":"","articles":[{"position":1,"headline":"","body":"","source":"","url":""}],"outro":""}
Keep each body to 2-4 sentences. Never invent sources or urls.`

// curatorContext is everything the curator prompt is built from.
type curatorContext struct {
	Brew     *models.Brew
	User     *models.User
	Now      time.Time
	NoRepeat []string
	Liked    []string
	Disliked []string
}

// temporalWindow describes the period the briefing should cover in the
// reader's local time.
func temporalWindow(brew *models.Brew, loc *time.Location, now time.Time) string {
	const layout = "Jan 2, 2006 3:04 PM MST"
	if brew.LastSentDate == nil || brew.LastSentDate.IsZero() {
		return "the past 3 days"
	}
	return fmt.Sprintf("between %s and %s",
		brew.LastSentDate.In(loc).Format(layout), now.In(loc).Format(layout))
}

func quoteList(items []string) string {
	q := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			q = append(q, fmt.Sprintf("%q", it))
		}
	}
	return strings.Join(q, ", ")
}

func buildCuratorPrompt(c curatorContext) (system, user string) {
	loc := c.User.Location()
	var b strings.Builder
	fmt.Fprintf(&b, "Brew: %s\n", c.Brew.Name)
	fmt.Fprintf(&b, "Topics: %s\n", quoteList(c.Brew.Topics))
	fmt.Fprintf(&b, "Delivery: %s (%s)\n", models.ClockLabel(c.Brew.DeliveryTime), loc.String())
	fmt.Fprintf(&b, "Cover news published %s.\n", temporalWindow(c.Brew, loc, c.Now))
	if len(c.NoRepeat) > 0 {
		b.WriteString("\nAlready sent recently, do not repeat:\n")
		for _, h := range c.NoRepeat {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	if len(c.Liked) > 0 {
		fmt.Fprintf(&b, "\nThe reader liked: %s\n", quoteList(c.Liked))
	}
	if len(c.Disliked) > 0 {
		fmt.Fprintf(&b, "The reader disliked: %s\n", quoteList(c.Disliked))
	}
	return curatorSystem, b.String()
}

// editorialStrategy picks how the editor should treat the material it got.
func editorialStrategy(articles int, hasNotes bool) string {
	switch {
	case articles == 0 && hasNotes:
		return "No articles were found. Build the briefing from the curator notes plus your own analysis of the topics; leave articles empty."
	case articles == 0:
		return "No articles were found. Write a short briefing of original analysis and context on the topics instead; leave articles empty."
	case articles < 3:
		return "Only a few articles were found. Go deeper on each one and use the curator notes for context."
	default:
		return "Write a brisk digest, one write-up per article, most important first."
	}
}

func buildEditorPrompt(brew *models.Brew, user *models.User, articles []Article, notes string) (system, prompt string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Reader: %s\n", user.DisplayName())
	fmt.Fprintf(&b, "Brew: %s (topics: %s)\n", brew.Name, quoteList(brew.Topics))
	fmt.Fprintf(&b, "Strategy: %s\n", editorialStrategy(len(articles), notes != ""))
	if notes != "" {
		fmt.Fprintf(&b, "Curator notes: %s\n", notes)
	}
	b.WriteString("\nArticles:\n")
	if len(articles) == 0 {
		b.WriteString("(none)\n")
	}
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   source: %s %s (%s)\n", i+1, a.Headline, a.Summary, a.Source, a.URL, a.PublishedTime)
	}
	return editorSystem, b.String()
}

func promptText(system, user string) string {
	return "system:\n" + system + "\n\nuser:\n" + user
}
