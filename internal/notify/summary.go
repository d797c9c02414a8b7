// Package notify renders the daily meal plan and hands it to the configured
// delivery channels.
package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"meal-mailer/internal/planner"
)

//go:embed templates/plan.html
var templatesFS embed.FS

var planTemplate = template.Must(template.ParseFS(templatesFS, "templates/plan.html"))

// SubjectLayout formats the date in the message subject.
const SubjectLayout = "Monday, 02 January 2006"

// NoMealMarker follows the slot title when a slot has no recipe.
const NoMealMarker = "No suitable meal found today."

// MealLine is one slot of today's plan as shown to readers.
type MealLine struct {
	Slot         string
	Title        string
	Name         string // empty when no recipe fits the slot
	Instructions string
}

// Summary is the rendered plan handed to every deliverer.
type Summary struct {
	PlanID    string
	Subject   string
	DateLabel string
	Meals     []MealLine
	Shopping  []string
	HTML      string
	Text      string
}

// Render builds the summary for today's assignment and tomorrow's shopping list.
func Render(planID string, date time.Time, today planner.Assignment, shopping []string) (Summary, error) {
	s := Summary{
		PlanID:    planID,
		Subject:   "🍽️ Family Meal Plan for " + date.Format(SubjectLayout),
		DateLabel: date.Format(planner.DateLayout),
		Meals:     make([]MealLine, 0, len(today)),
		Shopping:  shopping,
	}
	for _, m := range today {
		line := MealLine{Slot: m.Slot, Title: slotTitle(m.Slot)}
		if m.Recipe != nil {
			line.Name = m.Recipe.Name
			line.Instructions = m.Recipe.Instructions
		}
		s.Meals = append(s.Meals, line)
	}

	var buf bytes.Buffer
	if err := planTemplate.Execute(&buf, s); err != nil {
		return Summary{}, fmt.Errorf("failed to render plan: %w", err)
	}
	s.HTML = buf.String()

	text, err := plainText(s.HTML)
	if err != nil {
		return Summary{}, err
	}
	s.Text = text
	return s, nil
}

// plainText walks the rendered HTML and keeps its readable lines.
func plainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse rendered plan: %w", err)
	}

	var sb strings.Builder
	doc.Find(".container").Children().Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "ul" {
			sel.Find("li").Each(func(_ int, li *goquery.Selection) {
				sb.WriteString("  - " + strings.TrimSpace(li.Text()) + "\n")
			})
			return
		}
		if line := strings.Join(strings.Fields(sel.Text()), " "); line != "" {
			sb.WriteString(line + "\n")
		}
	})
	return sb.String(), nil
}

func slotTitle(slot string) string {
	if slot == "" {
		return slot
	}
	r, size := utf8.DecodeRuneInString(slot)
	return string(unicode.ToUpper(r)) + slot[size:]
}
