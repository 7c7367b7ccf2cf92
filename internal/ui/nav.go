package ui

import "github.com/utafrali/storefront/internal/domain"

// RenderNavigation shows the guest or user navigation block for s. A nil
// session renders the guest view. Missing elements are skipped.
func RenderNavigation(doc Document, s *domain.Session) {
	signedIn := s != nil

	if el, ok := doc.Element(ElementNavGuest); ok {
		el.SetVisible(!signedIn)
	}
	if el, ok := doc.Element(ElementNavUser); ok {
		el.SetVisible(signedIn)
	}
	if el, ok := doc.Element(ElementNavUserName); ok {
		if signedIn {
			el.SetText(s.Name)
		} else {
			el.SetText("")
		}
		el.SetVisible(signedIn)
	}
}
