package clipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"meal-mailer/internal/recipe"
)

// ErrNoRecipe is returned when a page has neither ingredients nor instructions.
var ErrNoRecipe = errors.New("no recipe found on page")

const headings = "h1, h2, h3, h4"

// Clipper handles fetching and extracting recipes from URLs.
type Clipper struct {
	httpClient *http.Client
}

// NewClipper creates a new Clipper instance.
func NewClipper() *Clipper {
	return &Clipper{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// ClipURL fetches the URL and extracts a recipe eligible for slots.
func (c *Clipper) ClipURL(ctx context.Context, url string, slots []string) (recipe.Recipe, error) {
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("failed to fetch content: %w", err)
	}
	return extract(doc, "", slots)
}

// ParseHTML extracts a recipe from an HTML fragment, such as a Ghost post
// body. title wins over any heading found in the fragment.
func ParseHTML(title, body string, slots []string) (recipe.Recipe, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("failed to parse html: %w", err)
	}
	return extract(doc, title, slots)
}

func (c *Clipper) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func extract(doc *goquery.Document, title string, slots []string) (recipe.Recipe, error) {
	r, ok := fromJSONLD(doc)
	if !ok {
		cleanDocument(doc)
		r = fromHeadings(doc)
	}
	if title = strings.TrimSpace(title); title != "" {
		r.Name = title
	}
	if r.Name == "" {
		r.Name = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if r.Name == "" {
		r.Name = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if len(r.Ingredients) == 0 && r.Instructions == "" {
		return recipe.Recipe{}, ErrNoRecipe
	}
	if r.Name == "" {
		return recipe.Recipe{}, fmt.Errorf("recipe has no title")
	}
	r.MealTimeEligibility = append([]string{}, slots...)
	return r, nil
}

// cleanDocument removes page noise that never holds recipe content.
func cleanDocument(doc *goquery.Document) {
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
}

// fromHeadings reads the lists and paragraphs that follow the "Ingredients"
// and "Instructions" (or "Method", "Directions", "Steps") headings.
func fromHeadings(doc *goquery.Document) recipe.Recipe {
	var r recipe.Recipe
	doc.Find(headings).Each(func(_ int, h *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(h.Text()))
		switch {
		case strings.Contains(label, "ingredient") && len(r.Ingredients) == 0:
			r.Ingredients = listItems(h.NextUntil(headings))
		case isInstructionsHeading(label) && r.Instructions == "":
			r.Instructions = strings.Join(sectionLines(h.NextUntil(headings)), "\n")
		}
	})
	return r
}

func isInstructionsHeading(label string) bool {
	for _, w := range []string{"instruction", "method", "direction", "steps", "preparation"} {
		if strings.Contains(label, w) {
			return true
		}
	}
	return false
}

func listItems(section *goquery.Selection) []string {
	var items []string
	section.Find("li").AddSelection(section.Filter("li")).Each(func(_ int, li *goquery.Selection) {
		if text := collapse(li.Text()); text != "" {
			items = append(items, text)
		}
	})
	if len(items) > 0 {
		return items
	}
	return sectionLines(section)
}

func sectionLines(section *goquery.Selection) []string {
	var lines []string
	section.Each(func(_ int, s *goquery.Selection) {
		items := s.Find("li")
		if items.Length() == 0 {
			if text := collapse(s.Text()); text != "" {
				lines = append(lines, text)
			}
			return
		}
		items.Each(func(_ int, li *goquery.Selection) {
			if text := collapse(li.Text()); text != "" {
				lines = append(lines, text)
			}
		})
	})
	return lines
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatHTML renders a recipe as a post body with the headings ParseHTML reads back.
func FormatHTML(r recipe.Recipe, sourceURL string) string {
	var sb strings.Builder
	if sourceURL != "" {
		u := html.EscapeString(sourceURL)
		sb.WriteString(fmt.Sprintf("<p><i>Imported from: <a href=\"%s\">%s</a></i></p>", u, u))
	}

	sb.WriteString("<h2>Ingredients</h2><ul>")
	for _, ing := range r.Ingredients {
		sb.WriteString(fmt.Sprintf("<li>%s</li>", html.EscapeString(ing)))
	}
	sb.WriteString("</ul>")

	sb.WriteString("<h2>Instructions</h2>")
	for _, line := range strings.Split(r.Instructions, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			sb.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(line)))
		}
	}
	return sb.String()
}

// fromJSONLD reads a schema.org Recipe embedded as JSON-LD, the format most
// recipe sites publish for search engines.
func fromJSONLD(doc *goquery.Document) (recipe.Recipe, bool) {
	var found recipe.Recipe
	ok := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		if node := findRecipeNode(raw); node != nil {
			found, ok = recipeFromNode(node), true
			return false
		}
		return true
	})
	return found, ok
}

func findRecipeNode(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if node := findRecipeNode(item); node != nil {
				return node
			}
		}
	case map[string]any:
		if isRecipeType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findRecipeNode(graph)
		}
	}
	return nil
}

func isRecipeType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Recipe"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

func recipeFromNode(node map[string]any) recipe.Recipe {
	r := recipe.Recipe{Name: collapse(stringValue(node["name"]))}
	for _, ing := range flattenText(node["recipeIngredient"]) {
		if ing = collapse(ing); ing != "" {
			r.Ingredients = append(r.Ingredients, ing)
		}
	}
	var steps []string
	for _, step := range flattenText(node["recipeInstructions"]) {
		if step = collapse(step); step != "" {
			steps = append(steps, step)
		}
	}
	r.Instructions = strings.Join(steps, "\n")
	return r
}

// flattenText collects text from strings, HowToStep objects (text) and
// HowToSection objects (itemListElement).
func flattenText(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, flattenText(item)...)
		}
		return out
	case map[string]any:
		if text, ok := t["text"]; ok {
			return flattenText(text)
		}
		if items, ok := t["itemListElement"]; ok {
			return flattenText(items)
		}
	}
	return nil
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
