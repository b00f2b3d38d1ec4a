// Package ui serves the single-field question form that forwards user text to
// the chat service and shows its answer.
package ui

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/aigoflow/edubot/pkg/client"
)

// BackendError is shown whenever the chat service cannot produce an answer.
const BackendError = "Error: Could not get response from backend."

const (
	Title       = "Education Domain Chatbot (GSM8K + DistilGPT-2)"
	Description = "Ask a grade school math question and get a step-by-step answer!"
	Placeholder = "Ask a grade school math question..."
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="utf-8">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .header { background: #2c2c2c; color: white; padding: 20px; border-radius: 12px; margin-bottom: 20px; }
        .panel { background: white; border-radius: 12px; padding: 20px; border: 1px solid #e0e0e0; }
        textarea { width: 100%; box-sizing: border-box; padding: 12px; border: 1px solid #d0d0d0; border-radius: 8px; font-family: inherit; font-size: 14px; }
        button { background: #ff8c00; color: white; padding: 12px 24px; border: none; border-radius: 8px; cursor: pointer; font-weight: 600; margin-top: 12px; }
        label { display: block; margin: 16px 0 5px; font-weight: 600; color: #333; font-size: 0.9em; }
        .output { white-space: pre-wrap; min-height: 3em; padding: 12px; background: #fafafa; border: 1px solid #e0e0e0; border-radius: 8px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}</h1>
        <p>{{.Description}}</p>
    </div>
    <form class="panel" method="post" action="/">
        <label for="question">question</label>
        <textarea id="question" name="question" rows="2" placeholder="{{.Placeholder}}">{{.Question}}</textarea>
        <button type="submit">Submit</button>
        <label for="output">output</label>
        <div id="output" class="output">{{.Output}}</div>
    </form>
</body>
</html>
`))

type pageData struct {
	Title       string
	Description string
	Placeholder string
	Question    string
	Output      string
}

// AskBot forwards question verbatim and returns the answer, or BackendError
// when the service fails to answer.
func AskBot(ctx context.Context, asker client.Asker, question string) string {
	answer, err := asker.Ask(ctx, question)
	if err != nil {
		slog.Warn("Backend request failed", "error", err)
		return BackendError
	}
	return answer
}

// NewApp builds the UI application.
func NewApp(asker client.Asker) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               Title,
		DisableStartupMessage: true,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return render(c, pageData{})
	})

	app.Post("/", func(c *fiber.Ctx) error {
		question := c.FormValue("question")
		return render(c, pageData{
			Question: question,
			Output:   AskBot(c.UserContext(), asker, question),
		})
	})

	app.Post("/api/ask", func(c *fiber.Ctx) error {
		var req struct {
			Question string `json:"question"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request, expected JSON: {\"question\":\"...\"}"})
		}
		return c.JSON(fiber.Map{"output": AskBot(c.UserContext(), asker, req.Question)})
	})

	return app
}

func render(c *fiber.Ctx, data pageData) error {
	data.Title = Title
	data.Description = Description
	data.Placeholder = Placeholder

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
