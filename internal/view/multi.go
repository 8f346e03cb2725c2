package view

// Multi fans every update out to several views in order.
type Multi []View

func (m Multi) SetSubmitting(submitting bool) {
	for _, v := range m {
		v.SetSubmitting(submitting)
	}
}

func (m Multi) ShowStatus(u StatusUpdate) {
	for _, v := range m {
		v.ShowStatus(u)
	}
}

func (m Multi) ShowResults(text string) {
	for _, v := range m {
		v.ShowResults(text)
	}
}

func (m Multi) ShowMessage(text string, kind MessageKind) {
	for _, v := range m {
		v.ShowMessage(text, kind)
	}
}

func (m Multi) HideMessage() {
	for _, v := range m {
		v.HideMessage()
	}
}
