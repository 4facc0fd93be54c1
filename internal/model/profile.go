package model

import "time"

// Product is a single product an exporter sells.
type Product struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	HSCode   string `json:"hs_code,omitempty"`
}

// Certification held by a business (e.g. CE, ISO 9001).
type Certification struct {
	Name       string     `json:"name"`
	Issuer     string     `json:"issuer,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// BusinessProfile describes an exporting business. Profiles are owned by an
// external collaborator and treated as immutable inputs to all scoring.
type BusinessProfile struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Industry       string          `json:"industry,omitempty"`
	EmployeeCount  int             `json:"employee_count"`
	Products       []Product       `json:"products"`
	TargetMarkets  []string        `json:"target_markets"` // ISO country codes
	Certifications []Certification `json:"certifications,omitempty"`
}

// ProductCategories returns the distinct categories across the profile's products.
func (p *BusinessProfile) ProductCategories() []string {
	seen := make(map[string]struct{}, len(p.Products))
	var cats []string
	for _, prod := range p.Products {
		if prod.Category == "" {
			continue
		}
		if _, ok := seen[prod.Category]; ok {
			continue
		}
		seen[prod.Category] = struct{}{}
		cats = append(cats, prod.Category)
	}
	return cats
}

// ProductNames returns the product names in declaration order.
func (p *BusinessProfile) ProductNames() []string {
	names := make([]string, 0, len(p.Products))
	for _, prod := range p.Products {
		names = append(names, prod.Name)
	}
	return names
}

// CertificationNames returns the certification names in declaration order.
func (p *BusinessProfile) CertificationNames() []string {
	names := make([]string, 0, len(p.Certifications))
	for _, c := range p.Certifications {
		names = append(names, c.Name)
	}
	return names
}
