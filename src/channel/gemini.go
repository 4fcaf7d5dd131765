package channel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"

	"github.com/mimi-labs/voicestream/src/logger"
)

// GeminiConfig configures the Gemini Live backend.
type GeminiConfig struct {
	APIKey       string
	Model        string // e.g. "models/gemini-2.5-flash-preview-native-audio-dialog"
	Voice        string // prebuilt voice name, e.g. "Leda"
	LanguageCode string
	SystemPrompt string

	// Vertex backend instead of the Gemini API key backend. Uses
	// Application Default Credentials.
	UseVertex bool
	ProjectID string
	Location  string
}

const (
	defaultLiveModel = "models/gemini-2.5-flash-preview-native-audio-dialog"
	defaultVoice     = "Leda"
	defaultLanguage  = "en-US"

	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
)

// GeminiDialer opens Gemini Live sessions configured for audio-only
// responses with a fixed system prompt and voice.
type GeminiDialer struct {
	cfg    GeminiConfig
	client *genai.Client
	log    *logger.Logger
}

// NewGeminiDialer builds the shared API client. One dialer serves all
// sessions; each Dial opens an independent live connection.
func NewGeminiDialer(ctx context.Context, cfg GeminiConfig) (*GeminiDialer, error) {
	if cfg.Model == "" {
		cfg.Model = defaultLiveModel
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = defaultLanguage
	}

	clientCfg := &genai.ClientConfig{}
	if cfg.UseVertex {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes: []string{cloudPlatformScope},
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials: %w", err)
		}
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.ProjectID
		clientCfg.Location = cfg.Location
		clientCfg.Credentials = creds
	} else {
		if cfg.APIKey == "" {
			return nil, errors.New("gemini: missing API key")
		}
		clientCfg.Backend = genai.BackendGeminiAPI
		clientCfg.APIKey = cfg.APIKey
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &GeminiDialer{
		cfg:    cfg,
		client: client,
		log:    logger.WithPrefix("Gemini"),
	}, nil
}

// Dial opens a live session and starts its receive loop. Every server
// message is converted and handed to sink in arrival order.
func (d *GeminiDialer) Dial(ctx context.Context, sink Sink, onError func(error)) (Channel, error) {
	liveCfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		MediaResolution:    genai.MediaResolutionMedium,
		SpeechConfig: &genai.SpeechConfig{
			LanguageCode: d.cfg.LanguageCode,
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: d.cfg.Voice,
				},
			},
		},
	}
	if d.cfg.SystemPrompt != "" {
		liveCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: d.cfg.SystemPrompt}},
		}
	}

	session, err := d.client.Live.Connect(ctx, d.cfg.Model, liveCfg)
	if err != nil {
		return nil, fmt.Errorf("live connect: %w", err)
	}
	d.log.Info("Live connection opened (model %s, voice %s)", d.cfg.Model, d.cfg.Voice)

	ch := &geminiChannel{
		session: session,
		log:     d.log,
	}
	go ch.receiveLoop(sink, onError)

	return ch, nil
}

type geminiChannel struct {
	session *genai.Session
	log     *logger.Logger
	closed  atomic.Bool
}

func (c *geminiChannel) Speak(ctx context.Context, text string) error {
	if c.closed.Load() {
		return errors.New("gemini: channel closed")
	}

	err := c.session.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		}},
		TurnComplete: genai.Ptr(true),
	})
	if err != nil {
		return fmt.Errorf("send client content: %w", err)
	}
	return nil
}

func (c *geminiChannel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.log.Info("Closing live connection")
	return c.session.Close()
}

// receiveLoop is the single producer for this channel's messages. It
// terminates when the session closes or the stream errors.
func (c *geminiChannel) receiveLoop(sink Sink, onError func(error)) {
	for {
		serverMsg, err := c.session.Receive()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.log.Error("Live connection error: %v", err)
			if onError != nil {
				onError(err)
			}
			return
		}
		sink(convertServerMessage(serverMsg))
	}
}

// convertServerMessage flattens a live server message into the parts
// and turn marker the pipeline cares about.
func convertServerMessage(msg *genai.LiveServerMessage) Message {
	var out Message
	if msg == nil || msg.ServerContent == nil {
		return out
	}

	out.TurnComplete = msg.ServerContent.TurnComplete

	if msg.ServerContent.ModelTurn != nil {
		for _, part := range msg.ServerContent.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			out.Parts = append(out.Parts, Part{
				Data:     part.InlineData.Data,
				MIMEType: part.InlineData.MIMEType,
			})
		}
	}

	return out
}
