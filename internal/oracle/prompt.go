package oracle

import (
	"fmt"
)

// ContentPart is one block of a multimodal message
type ContentPart struct {
	Type     string    `json:"type"` // "text" | "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// ImageRef points at one scanned page
type ImageRef struct {
	URL string `json:"url"`
}

// Message is one chat message in the oracle request
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// Request carries everything needed to grade one student's answer sheet.
// It is a structured value rather than ad hoc prompt concatenation so that
// section ordering can be unit tested without calling the oracle.
type Request struct {
	Instruction    string
	QuestionPapers []string
	AnswerKeys     []string
	StudentName    string
	RollNo         int
	Class          string
	Subject        string
	AnswerSheets   []string
	Model          string
	MaxTokens      int
}

func textMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentPart{{Type: "text", Text: text}}}
}

func imageSection(label string, pages []string) Message {
	content := make([]ContentPart, 0, len(pages)+1)
	content = append(content, ContentPart{Type: "text", Text: label})
	for _, page := range pages {
		content = append(content, ContentPart{Type: "image_url", ImageURL: &ImageRef{URL: page}})
	}
	return Message{Role: "user", Content: content}
}

// Messages renders the request into ordered chat messages: system
// instruction, question papers, answer keys, student identity, answer
// sheets. The order is part of the oracle contract.
func (r *Request) Messages() []Message {
	return []Message{
		textMessage("system", r.Instruction),
		imageSection("Question Paper(s):", r.QuestionPapers),
		imageSection("Answer Key(s):", r.AnswerKeys),
		textMessage("user", "student_name: "+r.StudentName),
		textMessage("user", fmt.Sprintf("roll_no: %d", r.RollNo)),
		textMessage("user", "class: "+r.Class),
		textMessage("user", "subject: "+r.Subject),
		imageSection("Answer Sheet(s):", r.AnswerSheets),
	}
}
