/*
Pokebattle is a peer-to-peer battle client: two nodes agree on the
outcome of each turn by computing the damage independently and
comparing results over a reliable datagram session.
*/
package main

import (
	"flag"
	"log"
	"net"
	"time"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"pokebattle"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the configuration file")
		role       = flag.String("role", "", "host, joiner or spectator")
		bind       = flag.String("bind", "", "local address to bind")
		peer       = flag.String("peer", "", "peer address (joiner and spectator only)")
		name       = flag.String("name", "", "player name")
		pokemon    = flag.String("pokemon", "", "initial creature name")
		csvPath    = flag.String("csv", "", "path to the stat CSV")
	)
	flag.Parse()

	cfg, err := pokebattle.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	applyFlag(&cfg.Role, *role)
	applyFlag(&cfg.Bind, *bind)
	applyFlag(&cfg.Peer, *peer)
	applyFlag(&cfg.Name, *name)
	applyFlag(&cfg.Pokemon, *pokemon)
	applyFlag(&cfg.PokemonCSV, *csvPath)

	logger, err := pokebattle.NewLogger()
	if err != nil {
		log.Fatal(err)
	}
	log.SetOutput(logger)

	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Poke", pterm.FgYellow.ToStyle()),
		putils.LettersFromStringWithStyle("battle", pterm.FgLightBlue.ToStyle()),
	).Render()

	dex, err := cfg.OpenStatSource()
	if err != nil {
		pterm.Warning.Printfln("No stat table (%v); unknown names get default stats.", err)
	}

	state := pokebattle.NewBattleState(cfg.Name)
	battle := pokebattle.NewBattle(state, dex, pokebattle.StandardMoves(), pokebattle.Role(cfg.Role))
	battle.OnChat = printChat

	node, err := pokebattle.NewPeerNodeWith(cfg.Bind, battle.Handle,
		cfg.RetransmitTimeoutDuration(), cfg.MaxRetries)
	if err != nil {
		log.Fatal(err)
	}
	defer node.Close()

	trap(node, logger)

	pterm.Info.Printfln("Listening on %v as %s (%s)", node.Addr(), cfg.Name, cfg.Role)

	switch pokebattle.Role(cfg.Role) {
	case pokebattle.RoleJoiner, pokebattle.RoleSpectator:
		if err := join(cfg, node, battle); err != nil {
			log.Fatal(err)
		}
	case pokebattle.RoleHost:
		pterm.Info.Println("Waiting for handshake requests...")
	default:
		log.Fatalf("unknown role %q", cfg.Role)
	}

	if cfg.Pokemon != "" {
		go func() {
			<-battle.Ready()
			if err := battle.SendSetup(node, cfg.Pokemon); err != nil {
				log.Print("setup: ", err)
			}
		}()
	}

	runConsole(&console{cfg: cfg, node: node, battle: battle})

	node.Close()
	logger.Close()
}

// join dials the configured peer and blocks until the handshake
// response arrives
func join(cfg *pokebattle.Config, node *pokebattle.PeerNode, battle *pokebattle.Battle) error {
	addr, err := net.ResolveUDPAddr("udp", cfg.Peer)
	if err != nil {
		return err
	}
	node.SetPeerAddr(addr)

	req := pokebattle.NewMsg(pokebattle.TypeHandshakeRequest)
	if pokebattle.Role(cfg.Role) == pokebattle.RoleSpectator {
		req = pokebattle.NewMsg(pokebattle.TypeSpectatorRequest)
	}

	if err := node.Send(req); err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("Waiting for the host...")
	select {
	case <-battle.Ready():
		spinner.Success("Session established.")
	case <-time.After(30 * time.Second):
		spinner.Warning("No handshake response yet; the request is still being retried.")
	}

	return nil
}

func printChat(sender, kind, body string) {
	if kind == pokebattle.ChatSticker {
		pterm.Info.Printfln("%s sent a sticker (%d bytes)", sender, len(body))
		return
	}

	pterm.Info.Printfln("%s: %s", sender, body)
}

func applyFlag(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
