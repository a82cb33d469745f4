package theme

// Style element ids used on the page.
const (
	// StyleIDPrefix prefixes every injected theme stylesheet id.
	StyleIDPrefix = "emby-theme-"
	// EnhancerStyleID is the id of the fixed enhancement stylesheet.
	EnhancerStyleID = "emby-enhancer-custom"
)

// StyleID returns the style element id for a theme.
func StyleID(id string) string { return StyleIDPrefix + id }

// EnhancerCSS is injected alongside every theme: color transitions,
// a visible focus ring, and the fadeIn keyframes stamped on new cards.
const EnhancerCSS = `/* Emby UI Enhancer */
* {
    transition: background-color 0.3s ease, color 0.3s ease, border-color 0.3s ease !important;
}

.emby-scroller {
    scrollbar-width: thin;
}

*:focus {
    outline: 2px solid var(--focus-color, #3b82f6) !important;
    outline-offset: 2px !important;
}

.mdl-spinner {
    animation-duration: 1s !important;
}

@keyframes fadeIn {
    from { opacity: 0; }
    to   { opacity: 1; }
}

@media (max-width: 768px) {
    body {
        font-size: 14px !important;
    }
}
`
