// flushsim renders frames through the display pipeline of a simulated board
// and writes the last frame the display controller scans out as PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/buildkite/shellwords"
	"github.com/sigurn/crc8"
	"golang.org/x/image/colornames"

	"github.com/clktmr/dispflush/board/stm32f746disco"
	"github.com/clktmr/dispflush/drivers/display"
	"github.com/clktmr/dispflush/framebuffer"
	"github.com/clktmr/dispflush/mcu/dma"
	"github.com/clktmr/dispflush/mcu/ltdc"
)

const usageString = `Display flush simulator.

Usage: %s [flags]

`

var (
	mode    = flag.String("mode", "partial", "partial | full")
	width   = flag.Int("width", stm32f746disco.Width, "display width")
	height  = flag.Int("height", stm32f746disco.Height, "display height")
	block   = flag.Int("block", stm32f746disco.BlockSize, "rows per transfer of full width areas")
	frames  = flag.Int("frames", 60, "number of frames to render")
	outfile = flag.String("o", "frame.png", "write the last frame to file")
	open    = flag.String("open", "", "Open the written file with command")
	latency = flag.Duration("latency", 0, "delay of every simulated DMA transfer")
)

const format = stm32f746disco.Format

var frameCRC8 = crc8.MakeTable(crc8.CRC8)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), usageString, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	log.Default().SetFlags(0)
	log.SetPrefix("flushsim: ")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	m, err := display.ParseMode(*mode)
	if err != nil {
		log.Fatalln(err)
	}

	sim := dma.NewSim(2, 0xffff)
	defer sim.Close()
	sim.SetLatency(*latency)

	timing := stm32f746disco.Timing
	timing.Width, timing.Height = *width, *height
	lcd := ltdc.New(new(ltdc.Registers))
	lcd.Configure(timing)
	layer := lcd.Layer(0)

	geom := framebuffer.GeometryOf(*width, *height, format)
	ctrl, err := display.New(display.Config{
		Geometry:  geom,
		Mode:      m,
		BlockSize: *block,
		Scanout:   layer,
		Engine:    sim,
		Fatal:     func(err error) { log.Fatalln(err) },
	})
	if err != nil {
		log.Fatalln(err)
	}
	if err := layer.Configure(geom, format, ctrl.Active().Addr()); err != nil {
		log.Fatalln(err)
	}

	start := time.Now()
	screen := display.NewScreen(ctrl, format)
	if err := render(screen, *frames); err != nil {
		log.Fatalln(err)
	}
	elapsed := time.Since(start)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ctrl.Drain(ctx); err != nil {
		log.Fatalln("drain:", err)
	}

	slot := scanned(ctrl, layer)
	if slot == nil {
		log.Fatalf("no frame buffer at %#x", layer.Address())
	}

	log.Printf("%v mode, %d frames in %v, %d transfers, %.1f fps",
		m, *frames, elapsed.Round(time.Millisecond), len(sim.Transfers()), screen.Driver.FPS())
	log.Printf("frame crc8 %#02x", checksum(slot))

	if err := writePNG(*outfile, slot.Image(format)); err != nil {
		log.Fatalln(err)
	}
	if *open != "" {
		openFile(*open, *outfile)
	}
}

// render draws a square bouncing over the screen, leaving a trail.
func render(screen *display.Screen, frames int) error {
	bounds := screen.Bounds()
	screen.ClearBackground(colornames.Midnightblue)
	if err := screen.EndDrawing(); err != nil {
		return err
	}

	size := min(bounds.Dx(), bounds.Dy()) / 8
	pos := image.Point{}
	vel := image.Point{max(size/3, 1), max(size/5, 1)}
	trail := []color.Color{colornames.Orange, colornames.Gold, colornames.Tomato}

	for i := range frames {
		r := image.Rectangle{pos, pos.Add(image.Point{size, size})}
		screen.SetColor(trail[i%len(trail)])
		screen.Fill(r)

		// A status bar spanning the full width is flushed in blocks.
		if i%10 == 0 {
			screen.SetColor(colornames.Slategray)
			screen.Fill(image.Rect(0, bounds.Max.Y-size/2, bounds.Max.X, bounds.Max.Y))
		}

		if err := screen.EndDrawing(); err != nil {
			return err
		}

		pos = pos.Add(vel)
		if pos.X < 0 || pos.X+size > bounds.Max.X {
			vel.X = -vel.X
			pos.X += 2 * vel.X
		}
		if pos.Y < 0 || pos.Y+size > bounds.Max.Y {
			vel.Y = -vel.Y
			pos.Y += 2 * vel.Y
		}
	}
	return nil
}

// scanned returns the frame buffer the display controller scans.
func scanned(ctrl *display.Controller, layer *ltdc.Layer) *framebuffer.Slot {
	for _, s := range ctrl.Buffers() {
		if s.Addr() == layer.Address() {
			return s
		}
	}
	return nil
}

func checksum(slot *framebuffer.Slot) uint8 {
	csum := crc8.Init(frameCRC8)
	for y := range slot.Geometry.Height {
		csum = crc8.Update(csum, slot.Row(y), frameCRC8)
	}
	return crc8.Complete(csum, frameCRC8)
}

func writePNG(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func openFile(cmdline, name string) {
	args, err := shellwords.Split(cmdline)
	if err != nil {
		log.Fatalln("open:", err)
	}
	if len(args) == 0 {
		log.Fatalln("open: empty command")
	}
	args = append(args, name)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Fatalln("open:", err)
	}
}
