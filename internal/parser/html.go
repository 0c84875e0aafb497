// Package parser extracts login forms, CSRF tokens and endpoint hints from panel pages.
package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed HTML document.
type Page struct {
	Title   string
	Forms   []FormInfo
	Meta    map[string]string
	Scripts []string // inline script bodies
	doc     *goquery.Document
	baseURL *url.URL
}

// FormInfo represents a parsed form.
type FormInfo struct {
	Action  string
	Method  string
	Enctype string
	ID      string
	Class   string
	Inputs  []InputInfo
}

// InputInfo represents a form input.
type InputInfo struct {
	Name         string
	Type         string
	Value        string
	ID           string
	Class        string
	Placeholder  string
	Autocomplete string
	Required     bool
	Disabled     bool
}

// ParsePage parses an HTML document. Relative form actions resolve against baseURL.
func ParsePage(body string, baseURL string) (*Page, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc := goquery.NewDocumentFromNode(root)
	page := &Page{
		Forms:   make([]FormInfo, 0),
		Meta:    make(map[string]string),
		Scripts: make([]string, 0),
		doc:     doc,
		baseURL: base,
	}

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		page.Forms = append(page.Forms, page.parseForm(s))
	})

	doc.Find("meta").Each(func(i int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		property, _ := s.Attr("property")
		content, _ := s.Attr("content")

		key := name
		if key == "" {
			key = property
		}
		if key != "" && content != "" {
			page.Meta[strings.ToLower(key)] = content
		}
	})

	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			page.Scripts = append(page.Scripts, text)
		}
	})

	return page, nil
}

// Find runs a selector against the document.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// FormActions returns the resolved action of every form, deduplicated.
func (p *Page) FormActions() []string {
	seen := make(map[string]bool)
	actions := make([]string, 0, len(p.Forms))
	for _, f := range p.Forms {
		if f.Action == "" || seen[f.Action] {
			continue
		}
		seen[f.Action] = true
		actions = append(actions, f.Action)
	}
	return actions
}

func (p *Page) parseForm(s *goquery.Selection) FormInfo {
	form := FormInfo{
		Inputs: make([]InputInfo, 0),
	}

	if action, exists := s.Attr("action"); exists && strings.TrimSpace(action) != "" {
		form.Action = p.resolveURL(strings.TrimSpace(action))
	} else {
		form.Action = p.baseURL.String()
	}

	if method, exists := s.Attr("method"); exists {
		form.Method = strings.ToUpper(method)
	} else {
		form.Method = "GET"
	}

	if enctype, exists := s.Attr("enctype"); exists {
		form.Enctype = enctype
	} else {
		form.Enctype = "application/x-www-form-urlencoded"
	}

	form.ID, _ = s.Attr("id")
	form.Class, _ = s.Attr("class")

	s.Find("input, textarea, select").Each(func(i int, input *goquery.Selection) {
		form.Inputs = append(form.Inputs, parseInput(input))
	})

	return form
}

func parseInput(s *goquery.Selection) InputInfo {
	info := InputInfo{}

	info.Name, _ = s.Attr("name")
	info.ID, _ = s.Attr("id")
	info.Class, _ = s.Attr("class")
	info.Value, _ = s.Attr("value")
	info.Placeholder, _ = s.Attr("placeholder")
	info.Autocomplete, _ = s.Attr("autocomplete")

	switch {
	case s.Is("textarea"):
		info.Type = "textarea"
		info.Value = strings.TrimSpace(s.Text())
	case s.Is("select"):
		info.Type = "select"
	default:
		info.Type, _ = s.Attr("type")
		info.Type = strings.ToLower(info.Type)
		if info.Type == "" {
			info.Type = "text"
		}
	}

	_, info.Required = s.Attr("required")
	_, info.Disabled = s.Attr("disabled")

	return info
}

func (p *Page) resolveURL(href string) string {
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(href, "#") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return p.baseURL.ResolveReference(ref).String()
}
