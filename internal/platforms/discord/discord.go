// Package discord connects the provisioning machine to Discord: the
// /server create command, the type-selection buttons, the step prompts
// and the final status message.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/DaaanielTV/hosting-club-discord-bot/internal/config"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/logger"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/provision"
	"github.com/bwmarrin/discordgo"
)

const customIDPrefix = "servertype_"

// Embed colors, matching the panel's bootstrap palette.
const (
	colorInfo    = 0x007bff
	colorPending = 0xffc107
	colorSuccess = 0x28a745
	colorFailure = 0xdc3545
)

// Platform is the Discord presentation adapter. It implements
// provision.Reporter and provision.RoleGranter.
type Platform struct {
	session   *discordgo.Session
	botUserID string

	channelID string
	roleID    string
	types     map[string]config.ServerType
	machine   *provision.Machine

	mu sync.Mutex
	// pending holds the interaction a synchronous Prompt call should
	// answer instead of posting a new message.
	pending map[string]*discordgo.Interaction
	// statusMsg tracks the processing message edited into the summary.
	statusMsg map[string]string
	// guilds remembers where each user started the flow, for the role
	// grant.
	guilds map[string]string

	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds Discord configuration
type Config struct {
	Token     string // Bot token from Discord Developer Portal
	ChannelID string // the server-creation channel
	RoleID    string // granted on success; empty disables the grant
	Types     map[string]config.ServerType
}

// New creates a new Discord platform
func New(cfg Config) (*Platform, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("Discord bot token is required")
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("server-creation channel ID is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	return &Platform{
		session:   session,
		channelID: cfg.ChannelID,
		roleID:    cfg.RoleID,
		types:     cfg.Types,
		pending:   make(map[string]*discordgo.Interaction),
		statusMsg: make(map[string]string),
		guilds:    make(map[string]string),
	}, nil
}

// Name returns the platform name
func (p *Platform) Name() string {
	return "discord"
}

// SetMachine wires the provisioning machine the adapter feeds. Must be
// called before Start.
func (p *Platform) SetMachine(m *provision.Machine) {
	p.machine = m
}

// Start opens the gateway connection and registers the slash command.
func (p *Platform) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.session.AddHandler(p.handleInteraction)
	p.session.AddHandler(p.handleMessage)

	if err := p.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	user, err := p.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	p.botUserID = user.ID

	if _, err := p.session.ApplicationCommandCreate(p.botUserID, "", &discordgo.ApplicationCommand{
		Name:        "server",
		Description: "Server management commands",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create a new server",
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to register /server command: %w", err)
	}

	logger.Info("[Discord] Connected as bot: %s", user.Username)
	return nil
}

// Stop shuts down the Discord connection
func (p *Platform) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	return p.session.Close()
}

func (p *Platform) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		p.handleCommand(i)
	case discordgo.InteractionMessageComponent:
		p.handleButton(i)
	}
}

// handleCommand answers /server create with the type selection, after
// the channel and capacity guards.
func (p *Platform) handleCommand(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "server" || len(data.Options) == 0 || data.Options[0].Name != "create" {
		return
	}

	userID := interactionUserID(i)
	if userID == "" {
		return
	}

	if i.ChannelID != p.channelID {
		p.respondEphemeral(i, "This command can only be used in the designated server-creation channel.")
		return
	}

	if !p.machine.HasCapacity(userID) {
		p.respondEphemeral(i, fmt.Sprintf("You already reached the maximum of %d servers.", p.machine.MaxServers()))
		return
	}

	p.rememberGuild(userID, i.GuildID)

	embed := &discordgo.MessageEmbed{
		Title:       "Server Creation",
		Description: "Choose the type of server you want to create:",
		Color:       colorInfo,
	}
	if err := p.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: p.typeButtons(),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		logger.Error("[Discord] Failed to send type selection: %v", err)
	}
}

// typeButtons renders one primary button per configured type, in a
// stable order.
func (p *Platform) typeButtons() []discordgo.MessageComponent {
	keys := make([]string, 0, len(p.types))
	for key := range p.types {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var rows []discordgo.MessageComponent
	var row discordgo.ActionsRow
	for _, key := range keys {
		row.Components = append(row.Components, discordgo.Button{
			CustomID: customIDPrefix + key,
			Label:    p.types[key].Name,
			Style:    discordgo.PrimaryButton,
		})
		// Discord caps an action row at five buttons.
		if len(row.Components) == 5 {
			rows = append(rows, row)
			row = discordgo.ActionsRow{}
		}
	}
	if len(row.Components) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// handleButton opens the session for the clicked type. The machine's
// first prompt answers the interaction by editing the selection
// message in place.
func (p *Platform) handleButton(i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	if !strings.HasPrefix(customID, customIDPrefix) {
		return
	}
	typeKey := strings.TrimPrefix(customID, customIDPrefix)

	userID := interactionUserID(i)
	if userID == "" {
		return
	}
	p.rememberGuild(userID, i.GuildID)

	p.setPending(userID, i.Interaction)
	defer p.clearPending(userID)

	err := p.machine.SelectType(userID, typeKey)
	switch {
	case errors.Is(err, provision.ErrAtCapacity):
		p.respondEphemeral(i, fmt.Sprintf("You already reached the maximum of %d servers.", p.machine.MaxServers()))
	case errors.Is(err, provision.ErrUnknownType):
		p.respondEphemeral(i, "This server type is no longer available.")
	case err != nil:
		logger.Error("[Discord] SelectType failed for %s: %v", userID, err)
	}
}

// handleMessage consumes free-text step input. Every message from a
// user with an open session is deleted before it is read any further,
// valid or not, so credentials never stay in the transcript.
func (p *Platform) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.ChannelID != p.channelID {
		return
	}
	if !p.machine.HasSession(m.Author.ID) {
		return
	}

	if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		logger.Warn("[Discord] Failed to delete message %s: %v", m.ID, err)
	}

	p.machine.HandleInput(p.ctx, m.Author.ID, m.Content)
}

// Prompt implements provision.Reporter.
func (p *Platform) Prompt(userID string, prompt provision.Prompt) {
	embed := &discordgo.MessageEmbed{
		Title:       prompt.Title,
		Description: prompt.Body,
		Color:       colorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: prompt.Footer},
	}

	// A prompt emitted while a button interaction is being handled
	// replaces the selection message and drops its buttons.
	if i := p.takePending(userID); i != nil {
		if err := p.session.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{embed},
				Components: []discordgo.MessageComponent{},
			},
		}); err != nil {
			logger.Error("[Discord] Failed to update selection message: %v", err)
		}
		return
	}

	if _, err := p.session.ChannelMessageSendComplex(p.channelID, &discordgo.MessageSend{
		Content: mention(userID),
		Embeds:  []*discordgo.MessageEmbed{embed},
	}); err != nil {
		logger.Error("[Discord] Failed to send prompt to %s: %v", userID, err)
	}
}

// Processing implements provision.Reporter.
func (p *Platform) Processing(userID string) {
	embed := &discordgo.MessageEmbed{
		Title:       "Server Creation",
		Description: "All information collected. Creating your account and server...",
		Color:       colorPending,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Processing..."},
	}
	msg, err := p.session.ChannelMessageSendComplex(p.channelID, &discordgo.MessageSend{
		Content: mention(userID),
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		logger.Error("[Discord] Failed to send processing notice to %s: %v", userID, err)
		return
	}

	p.mu.Lock()
	p.statusMsg[userID] = msg.ID
	p.mu.Unlock()
}

// Finished implements provision.Reporter: the processing notice is
// edited in place into the final summary.
func (p *Platform) Finished(userID string, r provision.Result) {
	var embed *discordgo.MessageEmbed
	if r.OK {
		embed = &discordgo.MessageEmbed{
			Title: "✅ Server created",
			Description: fmt.Sprintf(
				"Congratulations! Your %s was created successfully.\n\n"+
					"**Server details:**\n- Name: %s\n- Type: %s\n- Memory: %d MB\n- Server ID: %s\n\n"+
					"You can now log in to the panel with your email and password.",
				r.TypeName, r.ServerName, r.TypeName, r.MemoryMB, r.Identifier),
			Color:  colorSuccess,
			Footer: &discordgo.MessageEmbedFooter{Text: "Setup complete"},
		}
	} else {
		embed = &discordgo.MessageEmbed{
			Title: "❌ Server creation failed",
			Description: fmt.Sprintf(
				"There was an error creating your account or server: %s\n\n"+
					"Please try again later or contact an administrator.",
				r.ErrorDetail),
			Color:  colorFailure,
			Footer: &discordgo.MessageEmbedFooter{Text: "Error"},
		}
	}

	p.mu.Lock()
	msgID := p.statusMsg[userID]
	delete(p.statusMsg, userID)
	p.mu.Unlock()

	if msgID != "" {
		_, err := p.session.ChannelMessageEditEmbed(p.channelID, msgID, embed)
		if err == nil {
			return
		}
		logger.Warn("[Discord] Failed to edit status message for %s: %v", userID, err)
	}
	if _, err := p.session.ChannelMessageSendComplex(p.channelID, &discordgo.MessageSend{
		Content: mention(userID),
		Embeds:  []*discordgo.MessageEmbed{embed},
	}); err != nil {
		logger.Error("[Discord] Failed to send summary to %s: %v", userID, err)
	}
}

// Expired implements provision.Reporter.
func (p *Platform) Expired(userID string) {
	if _, err := p.session.ChannelMessageSendComplex(p.channelID, &discordgo.MessageSend{
		Content: mention(userID) + " Your server creation timed out. Run `/server create` to start again.",
	}); err != nil {
		logger.Warn("[Discord] Failed to send expiry notice to %s: %v", userID, err)
	}
}

// GrantRole implements provision.RoleGranter.
func (p *Platform) GrantRole(userID string) error {
	if p.roleID == "" {
		return nil
	}
	p.mu.Lock()
	guildID := p.guilds[userID]
	p.mu.Unlock()
	if guildID == "" {
		return fmt.Errorf("no guild recorded for user %s", userID)
	}
	return p.session.GuildMemberRoleAdd(guildID, userID, p.roleID)
}

func (p *Platform) rememberGuild(userID, guildID string) {
	if guildID == "" {
		return
	}
	p.mu.Lock()
	p.guilds[userID] = guildID
	p.mu.Unlock()
}

func (p *Platform) setPending(userID string, i *discordgo.Interaction) {
	p.mu.Lock()
	p.pending[userID] = i
	p.mu.Unlock()
}

func (p *Platform) takePending(userID string) *discordgo.Interaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.pending[userID]
	delete(p.pending, userID)
	return i
}

func (p *Platform) clearPending(userID string) {
	p.mu.Lock()
	delete(p.pending, userID)
	p.mu.Unlock()
}

func (p *Platform) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	if err := p.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		logger.Error("[Discord] Failed to respond to interaction: %v", err)
	}
}

// interactionUserID works for both guild (Member) and DM (User)
// interactions.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func mention(userID string) string {
	return "<@" + userID + ">"
}
