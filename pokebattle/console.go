package main

import (
	"sort"
	"strings"

	"github.com/pterm/pterm"

	"pokebattle"
)

type console struct {
	cfg    *pokebattle.Config
	node   *pokebattle.PeerNode
	battle *pokebattle.Battle
}

type command struct {
	usage string
	help  string
	fn    func(c *console, args string) error
}

var commands = map[string]*command{
	"setup": {
		usage: "/setup NAME",
		help:  "pick a creature and announce it to the peer",
		fn: func(c *console, args string) error {
			return c.battle.SendSetup(c.node, args)
		},
	},
	"attack": {
		usage: "/attack MOVE",
		help:  "announce an attack",
		fn: func(c *console, args string) error {
			return c.battle.Announce(c.node, args)
		},
	},
	"chat": {
		usage: "/chat TEXT",
		help:  "send a chat message",
		fn: func(c *console, args string) error {
			return c.node.Send(pokebattle.ChatMsg(c.cfg.Name, args))
		},
	},
	"sticker": {
		usage: "/sticker PATH",
		help:  "send an image as a sticker",
		fn: func(c *console, args string) error {
			msg, err := pokebattle.StickerMsg(c.cfg.Name, args)
			if err != nil {
				return err
			}
			return c.node.Send(msg)
		},
	},
	"status": {
		usage: "/status",
		help:  "show both health values and turn ownership",
		fn: func(c *console, _ string) error {
			mine, peer := c.battle.State().Names()
			myHP, peerHP, myTurn := c.battle.State().Status()

			if mine == "" {
				mine = "(not set up)"
			}
			if peer == "" {
				peer = "(unknown)"
			}

			pterm.Info.Printfln("%s: %d HP | %s: %d HP | my turn: %v",
				mine, myHP, peer, peerHP, myTurn)

			myBoosts, peerBoosts := c.battle.State().Boosts()
			pterm.Info.Printfln("special uses left: %d atk / %d def (peer: %d / %d)",
				myBoosts.SpecialAttackUses, myBoosts.SpecialDefenseUses,
				peerBoosts.SpecialAttackUses, peerBoosts.SpecialDefenseUses)

			if over, winner, _ := c.battle.State().Over(); over {
				pterm.Info.Printfln("Battle over. Winner: %s", winner)
			}

			return nil
		},
	},
	"moves": {
		usage: "/moves",
		help:  "list the known moves",
		fn: func(c *console, _ string) error {
			moves := pokebattle.StandardMoves()

			names := make([]string, 0, len(moves))
			for n := range moves {
				names = append(names, n)
			}
			sort.Strings(names)

			for _, n := range names {
				mv := moves[n]
				pterm.Printfln("  %-14s %3d power, %s %s", mv.Name, mv.Power, mv.Category, mv.Type)
			}

			return nil
		},
	},
}

func runConsole(c *console) {
	help(c)

	for {
		input, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(">").Show()

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		name := strings.TrimPrefix(input, "/")
		args := ""
		if i := strings.IndexByte(name, ' '); i >= 0 {
			name, args = name[:i], strings.TrimSpace(name[i+1:])
		}

		switch name {
		case "quit", "exit":
			return
		case "help":
			help(c)
			continue
		}

		cmd, ok := commands[name]
		if !ok {
			pterm.Warning.Printfln("Unknown command %q, try /help.", name)
			continue
		}

		if err := cmd.fn(c, args); err != nil {
			pterm.Error.Println(err)
		}
	}
}

func help(c *console) {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)

	pterm.Println("Commands:")
	for _, n := range names {
		pterm.Printfln("  %-16s %s", commands[n].usage, commands[n].help)
	}
	pterm.Printfln("  %-16s %s", "/quit", "exit")
}
