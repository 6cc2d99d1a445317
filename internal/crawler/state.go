package crawler

// PageState is the state of a pagination walk.
type PageState int

const (
	StateContinue PageState = iota
	StateDone
)

func (s PageState) String() string {
	switch s {
	case StateContinue:
		return "continue"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// NextListingState drives the category walk: it continues for as long as
// the page carries a next-page control.
func NextListingState(hasNext bool) PageState {
	if hasNext {
		return StateContinue
	}
	return StateDone
}

// NextReviewState drives a site's review walk. page is the 1-based index of
// the page just parsed; pageLimit 0 means no cap.
func NextReviewState(hasNext bool, page, pageLimit int) PageState {
	if !hasNext {
		return StateDone
	}
	if pageLimit > 0 && page >= pageLimit {
		return StateDone
	}
	return StateContinue
}
