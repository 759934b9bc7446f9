package llm

import (
	"context"
	"fmt"

	"bigfive-llm/internal/domain"
)

const (
	DemoProvider     = "demo"
	demoDefaultReply = "4"
	demoRefusalText  = "I'm sorry, but as an AI I don't have personal experiences or a personality, so I can't rate how well this statement describes me."
)

// DemoRater responde sin red. Sirve para smoke tests y para los tests end-to-end.
//
//	demo:echo     responde la opcion "reply" (o "reply.<item>") tal cual
//	demo:refuser  siempre se niega
type DemoRater struct{}

func NewDemoRater() *DemoRater { return &DemoRater{} }

func (d DemoRater) Rate(ctx context.Context, prompt domain.Prompt, model domain.TargetModel) (domain.RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawResponse{}, classifyTransport(DemoProvider, err)
	}
	if err := d.CheckModel(model); err != nil {
		return domain.RawResponse{}, err
	}
	switch model.Model {
	case "echo":
		reply := model.Option("reply", demoDefaultReply)
		reply = model.Option(fmt.Sprintf("reply.%d", prompt.ItemIndex), reply)
		return domain.RawResponse{Text: reply}, nil
	default:
		return domain.RawResponse{Text: demoRefusalText}, nil
	}
}

// CheckModel solo acepta echo y refuser.
func (DemoRater) CheckModel(model domain.TargetModel) error {
	switch model.Model {
	case "echo", "refuser":
		return nil
	default:
		return fmt.Errorf("demo model %q: %w", model.Model, ErrUnknownProvider)
	}
}
