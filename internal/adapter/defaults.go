// internal/adapter/defaults.go
package adapter

import "github.com/harvex/leadharvest/pkg/types"

// seedAdapters returns the adapters created on first run.
func seedAdapters() map[string]*types.Adapter {
	return map[string]*types.Adapter{
		ReservedName:         defaultAdapter(),
		"indeed":             indeedAdapter(),
		"linkedin":           linkedinAdapter(),
		"business_directory": businessDirectoryAdapter(),
	}
}

// defaultAdapter is the general-purpose fallback for arbitrary pages.
func defaultAdapter() *types.Adapter {
	return &types.Adapter{
		Name:        ReservedName,
		DisplayName: "Default General Scraper",
		Description: "General purpose scraper for any website",
		Selectors: map[string]types.SelectorRule{
			"title":      {Selector: "title", Attribute: "text"},
			"headings":   {Selector: "h1, h2, h3", Attribute: "text", Multiple: true},
			"links":      {Selector: "a[href]", Attribute: "href", Multiple: true},
			"paragraphs": {Selector: "p", Attribute: "text", Multiple: true},
		},
		ExtractLinks:      true,
		ExtractText:       true,
		FallbackToDynamic: true,
	}
}

func indeedAdapter() *types.Adapter {
	return &types.Adapter{
		Name:        "indeed",
		DisplayName: "Indeed Job Board",
		Description: "Scraper for Indeed job listings",
		Selectors: map[string]types.SelectorRule{
			"job_title": {Selector: "[data-jk] h2 a span", Attribute: "text"},
			"company":   {Selector: "[data-jk] .companyName", Attribute: "text"},
			"location":  {Selector: "[data-jk] .companyLocation", Attribute: "text"},
			"salary":    {Selector: "[data-jk] .salary-snippet", Attribute: "text"},
			"summary":   {Selector: "[data-jk] .job-snippet", Attribute: "text"},
			"job_url":   {Selector: "[data-jk] h2 a", Attribute: "href"},
		},
		FallbackToDynamic: true,
	}
}

func linkedinAdapter() *types.Adapter {
	return &types.Adapter{
		Name:        "linkedin",
		DisplayName: "LinkedIn Jobs",
		Description: "Scraper for LinkedIn job listings",
		Selectors: map[string]types.SelectorRule{
			"job_title": {Selector: ".job-search-card__title", Attribute: "text"},
			"company":   {Selector: ".job-search-card__subtitle-link", Attribute: "text"},
			"location":  {Selector: ".job-search-card__location", Attribute: "text"},
			"job_url":   {Selector: ".job-search-card__title-link", Attribute: "href"},
		},
		FallbackToDynamic: true,
	}
}

func businessDirectoryAdapter() *types.Adapter {
	return &types.Adapter{
		Name:        "business_directory",
		DisplayName: "Business Directory",
		Description: "Scraper for business directories and company listings",
		Selectors: map[string]types.SelectorRule{
			"business_name": {Selector: ".business-name, .company-name, h1, h2", Attribute: "text"},
			"address":       {Selector: ".address, .location, [class*='address']", Attribute: "text"},
			"phone":         {Selector: ".phone, .tel, [class*='phone']", Attribute: "text"},
			"email":         {Selector: "a[href^='mailto:']", Attribute: "href"},
			"website":       {Selector: ".website, a[class*='website']", Attribute: "href"},
			"description":   {Selector: ".description, .about, p", Attribute: "text", Multiple: true},
		},
		ExtractLinks: true,
		ExtractText:  true,
	}
}
