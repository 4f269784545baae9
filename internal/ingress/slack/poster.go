package slackingress

import (
	"context"

	"github.com/slack-go/slack"
)

// Poster sends a threaded reply with a workspace's bot token.
type Poster interface {
	Post(ctx context.Context, token, channel, threadTS, text string) error
}

type apiPoster struct {
	apiURL string
}

// NewPoster posts through chat.postMessage. An empty apiURL uses Slack's.
func NewPoster(apiURL string) Poster {
	return &apiPoster{apiURL: apiURL}
}

func (p *apiPoster) Post(ctx context.Context, token, channel, threadTS, text string) error {
	var opts []slack.Option
	if p.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(p.apiURL))
	}
	client := slack.New(token, opts...)

	msgOpts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		msgOpts = append(msgOpts, slack.MsgOptionTS(threadTS))
	}
	_, _, err := client.PostMessageContext(ctx, channel, msgOpts...)
	return err
}
