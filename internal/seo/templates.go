package seo

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/JakeFAU/carsearch/internal/inventory"
	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/slugs"
)

// pageText holds the three templates rendered for one route type.
type pageText struct {
	Title       string
	Description string
	H1          string
}

var pageTexts = map[RouteType]pageText{
	RouteTop: {
		Title:       "中古車検索{{suffix .}}",
		Description: "全国の中古車{{.Total}}台から探せます。メーカー・地域・装備で絞り込み。",
		H1:          "中古車一覧",
	},
	RoutePref: {
		Title:       "{{.Pref}}の中古車{{suffix .}}",
		Description: "{{.Pref}}の中古車{{.Total}}台を掲載中。最新の価格と在庫をチェック。",
		H1:          "{{.Pref}}の中古車",
	},
	RoutePrefCity: {
		Title:       "{{.Pref}}{{.City}}の中古車{{suffix .}}",
		Description: "{{.Pref}}{{.City}}の中古車{{.Total}}台を掲載中。",
		H1:          "{{.City}}の中古車",
	},
	RoutePrefCityMaker: {
		Title:       "{{.City}}の{{.Maker}}の中古車（{{.Pref}}）{{suffix .}}",
		Description: "{{.Pref}}{{.City}}で見つかる{{.Maker}}の中古車{{.Total}}台。",
		H1:          "{{.City}}の{{.Maker}}の中古車",
	},
	RouteMaker: {
		Title:       "{{.Maker}}の中古車{{suffix .}}",
		Description: "{{.Maker}}の中古車{{.Total}}台を全国から検索。",
		H1:          "{{.Maker}}の中古車",
	},
	RouteMakerModel: {
		Title:       "{{.Maker}} {{.Model}}の中古車{{suffix .}}",
		Description: "{{.Maker}} {{.Model}}の中古車{{.Total}}台。年式・走行距離・価格で比較。",
		H1:          "{{.Maker}} {{.Model}}の中古車",
	},
	RoutePrefMaker: {
		Title:       "{{.Pref}}の{{.Maker}}の中古車{{suffix .}}",
		Description: "{{.Pref}}で販売中の{{.Maker}}の中古車{{.Total}}台。",
		H1:          "{{.Pref}}の{{.Maker}}の中古車",
	},
	RoutePrefFeature: {
		Title:       "{{.Pref}}の{{.Feature}}の中古車{{suffix .}}",
		Description: "{{.Pref}}で見つかる{{.Feature}}の中古車{{.Total}}台。",
		H1:          "{{.Pref}}の{{.Feature}}の中古車",
	},
	RouteFeature: {
		Title:       "{{.Feature}}の中古車{{suffix .}}",
		Description: "{{.Feature}}の中古車{{.Total}}台を全国から検索。",
		H1:          "{{.Feature}}の中古車",
	},
	RouteSearch: {
		Title:       "{{if .Text}}「{{.Text}}」の{{end}}中古車検索結果{{suffix .}}",
		Description: "{{if .Text}}「{{.Text}}」に一致する{{end}}中古車{{.Total}}台の検索結果。",
		H1:          "{{if .Text}}「{{.Text}}」の{{end}}検索結果",
	},
	RouteDetail: {
		Title:       "{{.Car.Maker}} {{.Car.Model}} {{.Car.Year}}年式 {{.Price}}{{suffix .}}",
		Description: "{{.Car.Maker}} {{.Car.Model}}（{{.Car.Year}}年式・走行{{.Car.MileageKm}}km）{{.Price}}。{{.Car.Pref}}{{.Car.City}}の{{.Car.ShopName}}が販売中。",
		H1:          "{{.Car.Maker}} {{.Car.Model}} {{.Car.Year}}年式",
	},
	RouteUnknown: {
		Title:       "ページが見つかりません{{suffix .}}",
		Description: "お探しのページは見つかりませんでした。",
		H1:          "ページが見つかりません",
	},
}

// pageData is the template input.
type pageData struct {
	Site    string
	Pref    string
	City    string
	Maker   string
	Model   string
	Feature string
	Text    string
	Total   int
	Page    int
	Car     inventory.Car
	Price   string
}

type compiledText struct {
	title, description, h1 *template.Template
}

// Texts renders titles, descriptions, and headings.
type Texts struct {
	table    SlugTable
	site     string
	compiled map[RouteType]compiledText
}

// NewTexts parses every route template.
func NewTexts(table SlugTable, siteName string) (*Texts, error) {
	funcs := template.FuncMap{
		"suffix": func(d pageData) string {
			var b strings.Builder
			if d.Page >= 2 {
				fmt.Fprintf(&b, "（%dページ目）", d.Page)
			}
			if d.Site != "" {
				b.WriteString(" | ")
				b.WriteString(d.Site)
			}
			return b.String()
		},
	}
	compiled := make(map[RouteType]compiledText, len(pageTexts))
	for route, text := range pageTexts {
		var ct compiledText
		var err error
		if ct.title, err = template.New(string(route) + ".title").Funcs(funcs).Parse(text.Title); err != nil {
			return nil, fmt.Errorf("parse %s title: %w", route, err)
		}
		if ct.description, err = template.New(string(route) + ".description").Funcs(funcs).Parse(text.Description); err != nil {
			return nil, fmt.Errorf("parse %s description: %w", route, err)
		}
		if ct.h1, err = template.New(string(route) + ".h1").Funcs(funcs).Parse(text.H1); err != nil {
			return nil, fmt.Errorf("parse %s h1: %w", route, err)
		}
		compiled[route] = ct
	}
	return &Texts{table: table, site: siteName, compiled: compiled}, nil
}

// Render fills the templates for route. car is only read for detail pages.
func (t *Texts) Render(route RouteType, cond query.FilterCondition, total int, car *inventory.Car) (title, description, h1 string, err error) {
	ct, ok := t.compiled[route]
	if !ok {
		ct = t.compiled[RouteSearch]
	}
	data := pageData{
		Site:    t.site,
		Pref:    t.name(slugs.KindPref, cond.PrefSlug),
		City:    t.name(slugs.KindCity, cond.CitySlug),
		Maker:   t.name(slugs.KindMaker, cond.MakerSlug),
		Model:   t.name(slugs.KindModel, cond.ModelSlug),
		Feature: t.name(slugs.KindFeature, cond.FeatureSlug),
		Text:    cond.FreeText,
		Total:   total,
		Page:    cond.Page,
	}
	if car != nil {
		data.Car = *car
		data.Price = query.FormatMan(car.PriceYen) + "万円"
	}
	if title, err = execute(ct.title, data); err != nil {
		return "", "", "", err
	}
	if description, err = execute(ct.description, data); err != nil {
		return "", "", "", err
	}
	if h1, err = execute(ct.h1, data); err != nil {
		return "", "", "", err
	}
	return title, description, h1, nil
}

func (t *Texts) name(kind slugs.Kind, slug string) string {
	if slug == "" {
		return ""
	}
	return t.table.Name(kind, slug)
}

func execute(tmpl *template.Template, data pageData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
