package views

import "strconv"

type FooterLink struct {
	Label string
	Href  string
}

type FooterData struct {
	Links     []FooterLink
	Copyright string
}

func Footer(year int) FooterData {
	return FooterData{
		Links: []FooterLink{
			{Label: "About", Href: "/about"},
			{Label: "Terms", Href: "/terms"},
			{Label: "Privacy", Href: "/privacy"},
			{Label: "Contact", Href: "/contact"},
		},
		Copyright: "© " + strconv.Itoa(year) + " Fan Fiction Archive",
	}
}
