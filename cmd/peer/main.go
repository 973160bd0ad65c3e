// Command peer is a headless participant: it joins a room, negotiates the
// peer-to-peer channels and mirrors playback commands on a console-only
// video surface. Useful as a sync partner, a call endpoint and a test rig
// for the server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	ossignal "os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rahul15205/youtube-stream/internal/call"
	"github.com/Rahul15205/youtube-stream/internal/peer"
	"github.com/Rahul15205/youtube-stream/internal/playback"
	"github.com/Rahul15205/youtube-stream/internal/protocol"
)

func main() {
	server := flag.String("server", "ws://localhost:3000/api/ws/signal", "signaling server URL")
	room := flag.String("room", "", "room id to join")
	name := flag.String("name", "peer", "chat display name")
	acceptCalls := flag.Bool("accept-calls", true, "auto-accept incoming calls")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if *room == "" {
		fmt.Fprintln(os.Stderr, "usage: peer -room <id> [-server url] [-name who]")
		os.Exit(2)
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	player := playback.NewHeadlessPlayer()

	decide := func(hasVideo bool, answer func(accept bool)) {
		kind := "audio"
		if hasVideo {
			kind = "video"
		}
		log.Info().Str("module", "peer").Str("kind", kind).Bool("accept", *acceptCalls).Msg("incoming call")
		answer(*acceptCalls)
	}

	sess, err := peer.NewSession(peer.Options{
		ServerURL: *server,
		Room:      *room,
		Username:  *name,
		Player:    player,
		Decide:    decide,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("session setup")
	}

	player.OnStateChange(sess.Playback().OnPlayerStateChange)
	player.OnRateChange(sess.Playback().OnPlaybackRateChange)

	sess.OnChat(func(msg protocol.ChatMessage) {
		ts := time.UnixMilli(msg.TS).Format("15:04")
		fmt.Printf("%s — %s: %s\n", ts, msg.User, msg.Text)
	})
	sess.Calls().OnStateChange(func(s call.State) {
		log.Info().Str("module", "peer").Str("call_state", s.String()).Msg("call state")
	})
	sess.Calls().OnDuration(func(d time.Duration) {
		fmt.Printf("\rin call %02d:%02d ", int(d.Minutes()), int(d.Seconds())%60)
	})

	go repl(sess, player)

	if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("session ended")
	}
}

// repl reads commands from stdin; anything that is not a command goes out
// as chat.
func repl(sess *peer.Session, player *playback.HeadlessPlayer) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "load":
			if len(fields) > 1 {
				sess.Playback().LoadVideo(fields[1])
			}
		case "play":
			player.Play()
		case "pause":
			player.Pause()
		case "seek":
			if len(fields) > 1 {
				if s, err := strconv.ParseFloat(fields[1], 64); err == nil {
					player.SeekTo(s, true)
				}
			}
		case "rate":
			if len(fields) > 1 {
				if r, err := strconv.ParseFloat(fields[1], 64); err == nil {
					player.SetPlaybackRate(r)
				}
			}
		case "sync":
			if err := sess.Playback().RequestSync(); err != nil {
				log.Warn().Err(err).Msg("cannot sync, not connected to peer")
			}
		case "call":
			withVideo := len(fields) > 1 && fields[1] == "video"
			if err := sess.Calls().StartCall(withVideo); err != nil {
				log.Warn().Err(err).Msg("cannot start call")
			}
		case "hangup":
			sess.Calls().EndCall()
		case "mute":
			log.Info().Bool("muted", sess.Calls().ToggleMute()).Msg("mute toggled")
		case "cam":
			log.Info().Bool("camera_off", sess.Calls().ToggleCamera()).Msg("camera toggled")
		default:
			if err := sess.SendChat(line); err != nil {
				log.Warn().Err(err).Msg("chat not delivered")
			}
		}
	}
}
