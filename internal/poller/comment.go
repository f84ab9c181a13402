package poller

// DefaultComment is posted when no templates are configured.
const DefaultComment = "Hi, I'd like to work on this issue!"

// PickComment chooses one template using intn, which must return a value in
// [0, n). An empty template list yields DefaultComment.
func PickComment(templates []string, intn func(n int) int) string {
	if len(templates) == 0 {
		return DefaultComment
	}
	return templates[intn(len(templates))]
}
