package spanguard

// Restore swaps every token occurrence in translated back to the original
// text it stands for. A token repeated by the translation step is restored
// at every occurrence. Replacement happens in a single left-to-right pass, so
// restored text is never scanned again for tokens.
//
// Restore does not report dropped or unknown tokens; use RestoreVerified or
// Verify for that.
func Restore(translated string, spans []ProtectedSpan) string {
	if len(spans) == 0 {
		return translated
	}
	index := spanIndex(spans)
	return looseToken.ReplaceAllStringFunc(translated, func(m string) string {
		if orig, ok := index[canonical(m)]; ok {
			return orig
		}
		return m
	})
}

// Verify checks translated text before restoration. It fails when the text
// carries a token that no span owns, or when a span's token is missing.
func Verify(translated string, spans []ProtectedSpan) error {
	index := spanIndex(spans)
	present := make(map[string]bool, len(spans))
	for _, m := range looseToken.FindAllString(translated, -1) {
		tok := canonical(m)
		if _, ok := index[tok]; !ok {
			return &RestorationError{Token: tok, Reason: "unknown token in translated text"}
		}
		present[tok] = true
	}
	for _, s := range spans {
		if !present[s.Token] {
			return &RestorationError{Token: s.Token, Reason: "token dropped by translation"}
		}
	}
	return nil
}

// RestoreVerified runs Verify and then Restore.
func RestoreVerified(translated string, spans []ProtectedSpan) (string, error) {
	if err := Verify(translated, spans); err != nil {
		return "", err
	}
	return Restore(translated, spans), nil
}

func spanIndex(spans []ProtectedSpan) map[string]string {
	index := make(map[string]string, len(spans))
	for _, s := range spans {
		index[s.Token] = s.Original
	}
	return index
}
