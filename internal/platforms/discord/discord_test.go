package discord

import (
	"testing"

	"github.com/DaaanielTV/hosting-club-discord-bot/internal/config"
	"github.com/bwmarrin/discordgo"
)

func TestTypeButtonsAreStableAndChunked(t *testing.T) {
	types := map[string]config.ServerType{
		"minecraft": {Name: "Minecraft Server"},
		"nodejs":    {Name: "Node.js Server"},
		"teamspeak": {Name: "TeamSpeak Server"},
		"database":  {Name: "MySQL Datenbank"},
		"debian":    {Name: "Debian Server"},
		"python":    {Name: "Python Server"},
	}
	p := &Platform{types: types}

	rows := p.typeButtons()
	if len(rows) != 2 {
		t.Fatalf("6 types must span 2 rows, got %d", len(rows))
	}

	var labels, ids []string
	for _, row := range rows {
		ar := row.(discordgo.ActionsRow)
		if len(ar.Components) > 5 {
			t.Fatalf("row holds %d buttons, max is 5", len(ar.Components))
		}
		for _, c := range ar.Components {
			b := c.(discordgo.Button)
			labels = append(labels, b.Label)
			ids = append(ids, b.CustomID)
		}
	}

	// Keys sorted, so "database" comes first.
	if ids[0] != "servertype_database" || labels[0] != "MySQL Datenbank" {
		t.Fatalf("first button = %s / %s", ids[0], labels[0])
	}
	if ids[len(ids)-1] != "servertype_teamspeak" {
		t.Fatalf("last button = %s", ids[len(ids)-1])
	}

	// The same catalog must always render the same order.
	again := p.typeButtons()
	ar := again[0].(discordgo.ActionsRow)
	if ar.Components[0].(discordgo.Button).CustomID != ids[0] {
		t.Fatalf("button order is not stable")
	}
}

func TestInteractionUserID(t *testing.T) {
	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "m1"}},
	}}
	if got := interactionUserID(guild); got != "m1" {
		t.Fatalf("guild interaction user = %q", got)
	}

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "d1"},
	}}
	if got := interactionUserID(dm); got != "d1" {
		t.Fatalf("dm interaction user = %q", got)
	}

	empty := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	if got := interactionUserID(empty); got != "" {
		t.Fatalf("empty interaction user = %q", got)
	}
}

func TestNewRequiresTokenAndChannel(t *testing.T) {
	if _, err := New(Config{ChannelID: "c"}); err == nil {
		t.Fatalf("expected error without token")
	}
	if _, err := New(Config{Token: "t"}); err == nil {
		t.Fatalf("expected error without channel")
	}
}
