package main

import (
	"context"
	"log"
	"os"
	"time"

	appcfg "github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/config"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/evaloracle"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/gateway"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/userdir"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	userID := os.Getenv("CHECK_USER_ID")
	wsURL := os.Getenv("ARENA_WS_URL")
	fen := os.Getenv("CHECK_FEN")
	if fen == "" {
		fen = startFEN
	}

	if cfg.UserServiceURL != "" && userID != "" {
		client := userdir.NewClient(cfg.UserServiceURL, userdir.WithTimeout(5*time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		u, err := client.LookupUser(ctx, userID)
		cancel()
		if err != nil {
			log.Printf("user lookup error: %v", err)
		} else {
			log.Printf("user ok: id=%s rating=%d wallet=%s", u.ID, u.Rating, u.Wallet)
		}
	} else {
		log.Println("USER_SERVICE_URL or CHECK_USER_ID not set; skipping user check")
	}

	if cfg.Oracle.StockfishPath != "" {
		sf, err := evaloracle.NewStockfish(cfg.Oracle, nil)
		if err != nil {
			log.Printf("oracle init error: %v", err)
		} else {
			oracle := evaloracle.Limit(sf, evaloracle.LimitConfig{Timeout: cfg.Oracle.Timeout, Concurrency: 1}, nil)
			start := time.Now()
			ev, err := oracle.Evaluate(context.Background(), fen)
			if err != nil {
				log.Printf("oracle eval error: %v", err)
			} else {
				log.Printf("oracle ok: cp=%d mate=%d best=%s took=%s", ev.CP, ev.Mate, ev.BestMove, time.Since(start))
			}
			_ = sf.Close()
		}
	} else {
		log.Println("STOCKFISH_PATH not set; skipping oracle check")
	}

	if wsURL == "" || userID == "" {
		log.Println("ARENA_WS_URL or CHECK_USER_ID not set; skipping WS check")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := gateway.Dial(ctx, wsURL+"?userId="+userID, nil)
	if err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	defer c.Close()

	if err := c.Send(ctx, arenadto.EventFindMatch, arenadto.FindMatchRequest{Speed: "rapid"}); err != nil {
		log.Printf("WS send error: %v", err)
		return
	}
	var q arenadto.InQueue
	if err := c.Await(ctx, arenadto.EventInQueue, &q, nil); err != nil {
		log.Printf("WS queue error: %v", err)
		return
	}
	log.Printf("WS queue ok: user=%s speed=%s", q.UserID, q.Speed)
	_ = c.Send(ctx, arenadto.EventCancelMatchmaking, arenadto.CancelMatchmakingRequest{})
	if err := c.Await(ctx, arenadto.EventMatchmakingCancelled, nil, nil); err != nil {
		log.Printf("WS cancel error: %v", err)
		return
	}
	log.Println("WS cancel ok")
}
