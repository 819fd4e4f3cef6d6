package discord

import (
	"context"
	"time"
)

// SendEmbed sends an embed message described by options.
func (d *Discord) SendEmbed(ctx context.Context, options MessageOptions) error {
	embed := Embed{
		Title:       d.truncateString(options.Title, MaxTitleLen),
		Description: d.truncateString(options.Description, MaxDescriptionLen),
		URL:         options.URL,
		Color:       d.getColorForType(options.Type),
		Footer:      options.Footer,
	}

	for _, f := range options.Fields {
		embed.Fields = append(embed.Fields, EmbedField{
			Name:   f.Name,
			Value:  d.truncateString(f.Value, MaxFieldValueLen),
			Inline: f.Inline,
		})
	}

	ts := options.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	embed.Timestamp = ts.Format(time.RFC3339)

	if err := d.validateEmbedLength(&embed); err != nil {
		return err
	}

	username := options.Username
	if username == "" {
		username = d.config.DefaultUsername
	}

	return d.sendWithRetry(ctx, &WebhookPayload{
		Username: username,
		Embeds:   []Embed{embed},
	})
}

// SendAlert sends a severity-colored alert with optional key/value fields.
func (d *Discord) SendAlert(ctx context.Context, msgType MessageType, title, description string, fields map[string]string) error {
	options := MessageOptions{
		Type:        msgType,
		Title:       title,
		Description: description,
	}
	for name, value := range fields {
		options.Fields = append(options.Fields, EmbedField{Name: name, Value: value, Inline: true})
	}
	return d.SendEmbed(ctx, options)
}

// SendInfo sends an informational message.
func (d *Discord) SendInfo(ctx context.Context, title, description string) error {
	return d.SendEmbed(ctx, MessageOptions{
		Type:        MessageTypeInfo,
		Title:       title,
		Description: description,
	})
}

// SendError reports an error with its message attached as a field.
func (d *Discord) SendError(ctx context.Context, title, description string, err error) error {
	options := MessageOptions{
		Type:        MessageTypeError,
		Title:       title,
		Description: description,
	}
	if err != nil {
		options.Fields = append(options.Fields, EmbedField{
			Name:  "Error",
			Value: d.truncateString(err.Error(), MaxFieldValueLen),
		})
	}
	return d.SendEmbed(ctx, options)
}
