// Package render draws spectator frames of the arena.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"sort"

	"asteroid-arena/internal/game"

	"github.com/fogleman/gg"
)

// Renderer turns world snapshots into PNG images. It holds no state between
// frames and is safe for concurrent use.
type Renderer struct {
	MaxHealth  int
	ShipRadius float64
}

// NewRenderer returns a renderer sized for the given rules.
func NewRenderer(rules game.Rules) *Renderer {
	return &Renderer{
		MaxHealth:  rules.MaxHealth,
		ShipRadius: rules.PlayerRadius,
	}
}

// PNG renders ws at arena resolution.
func (r *Renderer) PNG(ws game.WorldState) ([]byte, error) {
	w, h := int(math.Ceil(ws.GameWidth)), int(math.Ceil(ws.GameHeight))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("render: empty arena %gx%g", ws.GameWidth, ws.GameHeight)
	}

	dc := gg.NewContext(w, h)
	drawBackground(dc, w, h)
	r.drawAsteroids(dc, ws.Asteroids)
	r.drawBullets(dc, ws.Bullets)
	r.drawShips(dc, ws.Players)
	drawHUD(dc, ws)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBackground(dc *gg.Context, w, h int) {
	dc.SetColor(color.RGBA{5, 5, 16, 255})
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	// Fixed starfield so consecutive frames do not flicker
	dc.SetColor(color.RGBA{200, 200, 220, 255})
	for i := 0; i < 60; i++ {
		x := float64((i * 97) % w)
		y := float64((i * 61) % h)
		dc.DrawCircle(x, y, 1)
		dc.Fill()
	}
}

func (r *Renderer) drawAsteroids(dc *gg.Context, asteroids []game.ObstacleState) {
	dc.SetLineWidth(2)
	for _, a := range asteroids {
		dc.Push()
		dc.Translate(a.X, a.Y)
		dc.Rotate(a.Rotation)
		dc.DrawRegularPolygon(8, 0, 0, a.Size, 0)
		dc.SetColor(color.RGBA{90, 80, 70, 255})
		dc.FillPreserve()
		dc.SetColor(color.RGBA{170, 160, 150, 255})
		dc.Stroke()
		dc.Pop()
	}
}

func (r *Renderer) drawBullets(dc *gg.Context, bullets []game.ProjectileState) {
	dc.SetColor(color.RGBA{255, 240, 120, 255})
	for _, b := range bullets {
		dc.DrawCircle(b.X, b.Y, 2)
		dc.Fill()
	}
}

func (r *Renderer) drawShips(dc *gg.Context, players map[string]game.PlayerState) {
	// Stable draw order so overlapping ships layer the same way every frame
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r.drawShip(dc, players[id])
	}
}

func (r *Renderer) drawShip(dc *gg.Context, p game.PlayerState) {
	radius := r.ShipRadius
	if radius <= 0 {
		radius = 15
	}

	dc.Push()
	dc.Translate(p.X, p.Y)
	dc.Rotate(p.Rotation)
	dc.MoveTo(0, -radius)
	dc.LineTo(radius*0.7, radius)
	dc.LineTo(0, radius*0.5)
	dc.LineTo(-radius*0.7, radius)
	dc.ClosePath()
	dc.SetColor(shipColor(p.Color))
	dc.Fill()
	dc.Pop()

	// Health bar
	if r.MaxHealth > 0 {
		barW, barH := radius*2, 3.0
		pct := math.Max(0, math.Min(1, float64(p.Health)/float64(r.MaxHealth)))
		dc.SetColor(color.RGBA{51, 51, 51, 255})
		dc.DrawRectangle(p.X-barW/2, p.Y-radius-8, barW, barH)
		dc.Fill()
		if pct > 0.5 {
			dc.SetColor(color.RGBA{83, 255, 69, 255})
		} else if pct > 0.25 {
			dc.SetColor(color.RGBA{255, 149, 0, 255})
		} else {
			dc.SetColor(color.RGBA{255, 62, 62, 255})
		}
		dc.DrawRectangle(p.X-barW/2, p.Y-radius-8, barW*pct, barH)
		dc.Fill()
	}

	dc.SetColor(color.White)
	dc.DrawStringAnchored(p.Name, p.X, p.Y+radius+10, 0.5, 0.5)
}

func drawHUD(dc *gg.Context, ws game.WorldState) {
	dc.SetColor(color.RGBA{220, 220, 220, 255})
	dc.DrawString(fmt.Sprintf("tick %d  ships %d  asteroids %d", ws.Tick, len(ws.Players), len(ws.Asteroids)), 8, 16)

	y := 34.0
	for _, e := range game.Leaderboard(ws, 5) {
		dc.SetColor(shipColor(e.Color))
		dc.DrawString(fmt.Sprintf("%d. %s  %d", e.Rank, e.Name, e.Score), 8, y)
		y += 14
	}
}

// shipColor parses the "hsl(h, 100%, 50%)" strings ships carry.
func shipColor(hsl string) color.Color {
	var hue float64
	if _, err := fmt.Sscanf(hsl, "hsl(%f,", &hue); err != nil {
		return color.White
	}
	r, g, b := game.HueRGB(hue)
	return color.RGBA{r, g, b, 255}
}
