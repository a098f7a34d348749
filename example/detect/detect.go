package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/swdee/go-featdetect"
	"github.com/swdee/go-featdetect/features"
	"github.com/swdee/go-featdetect/match"
	"github.com/swdee/go-featdetect/render"
	"github.com/swdee/go-featdetect/stream"
	"gocv.io/x/gocv"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
)

// escKey is the key code that closes the preview window
const escKey = 27

func main() {

	parser := argparse.NewParser("detect", "Detect object classes by keypoint matching against a reference image directory")
	refDir := parser.String("d", "database", &argparse.Options{Help: "Reference image directory, one subdirectory per class", Default: ""})
	cacheFile := parser.String("", "cache", &argparse.Options{Help: "Feature cache file, read if present otherwise written after building", Default: ""})
	rebuild := parser.Flag("", "rebuild", &argparse.Options{Help: "Ignore an existing feature cache and rebuild it", Default: false})
	classesFile := parser.String("", "classes", &argparse.Options{Help: "Text file listing the classes to load, one per line", Default: ""})
	skip := parser.Flag("", "skip", &argparse.Options{Help: "Skip unreadable reference images instead of failing", Default: false})
	imgFile := parser.String("i", "image", &argparse.Options{Help: "Image file to run detection on", Default: ""})
	vidFile := parser.String("v", "video", &argparse.Options{Help: "Video file to run detection on", Default: ""})
	camera := parser.Int("c", "camera", &argparse.Options{Help: "Camera device ID to run detection on", Default: -1})
	imgDir := parser.String("", "dir", &argparse.Options{Help: "Directory of images to run detection on", Default: ""})
	output := parser.String("o", "output", &argparse.Options{Help: "Annotated output image, video file or directory", Default: ""})
	show := parser.Flag("s", "show", &argparse.Options{Help: "Show annotated frames in a window, ESC to quit", Default: false})
	extractor := parser.String("e", "extractor", &argparse.Options{Help: "Feature extractor: SIFT, RootSIFT or SURF", Default: "RootSIFT"})
	matcher := parser.String("m", "matcher", &argparse.Options{Help: "Matcher: BF or FLANN", Default: "BF"})
	minPoints := parser.Int("p", "minpoints", &argparse.Options{Help: "Good matches a reference must exceed to be detected", Default: 10})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "RANSAC reprojection threshold in pixels", Default: 5.0})
	minArea := parser.Float("", "minarea", &argparse.Options{Help: "Minimum projected object area in pixels, 0 to disable", Default: 0.0})
	workers := parser.Int("w", "workers", &argparse.Options{Help: "Parallel feature extractors used when building the database", Default: 0})
	cores := parser.String("", "cores", &argparse.Options{Help: "Comma separated CPU cores to run on, eg: 4,5,6,7", Default: ""})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	log, err := logs.NewLog()

	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}

	defer log.Close()

	if *cores != "" {
		if err := setCores(*cores); err != nil {
			log.Criticalf("%v", err)
			os.Exit(1)
		}

		if pinned, err := featdetect.GetCPUAffinity(); err == nil {
			log.Infof("Running on CPU cores %v", pinned)
		}
	}

	params := featdetect.DefaultParams()
	params.MinPoints = *minPoints
	params.Homography.Threshold = *threshold
	params.MinObjectArea = *minArea

	if *workers > 0 {
		params.Workers = *workers
	}

	if params.Extractor, err = features.ParseKind(*extractor); err != nil {
		log.Criticalf("%v", err)
		os.Exit(1)
	}

	if params.Matcher, err = match.ParseKind(*matcher); err != nil {
		log.Criticalf("%v", err)
		os.Exit(1)
	}

	db, err := loadDatabase(log, params, *refDir, *cacheFile, *classesFile, *rebuild, *skip)

	if err != nil {
		log.Criticalf("Error loading reference database: %v", err)
		os.Exit(1)
	}

	defer db.Close()

	if db.Kind() != params.Extractor {
		log.Warnf("Cache was built with %v features, using %v instead of %v",
			db.Kind(), db.Kind(), params.Extractor)
		params.Extractor = db.Kind()
	}

	det, err := featdetect.NewKeypointDetector(db, params, log)

	if err != nil {
		log.Criticalf("Error creating detector: %v", err)
		os.Exit(1)
	}

	defer det.Close()

	labels := make([]string, 0, db.Len())

	for _, c := range db.Classes() {
		labels = append(labels, c.Label)
	}

	style := render.DefaultStyle()
	style.ClassColors = render.ClassColors(labels)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *imgFile != "":
		err = detectImage(log, det, style, *imgFile, *output)
	case *imgDir != "":
		err = detectDir(ctx, log, det, style, *imgDir, *output)
	case *vidFile != "" || *camera >= 0:
		err = detectStream(ctx, log, det, style, *vidFile, *camera, *output, *show)
	default:
		err = errors.New("nothing to detect on, give --image, --dir, --video or --camera")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Criticalf("%v", err)
		os.Exit(1)
	}

	for _, label := range labels {
		log.Infof("%s: detected in %d frames", label, det.Counts()[label])
	}
}

// setCores pins the process to the listed CPU cores
func setCores(list string) error {

	var cores []int

	for _, s := range strings.Split(list, ",") {
		core, err := strconv.Atoi(strings.TrimSpace(s))

		if err != nil {
			return fmt.Errorf("invalid CPU core %q: %w", s, err)
		}

		cores = append(cores, core)
	}

	return featdetect.SetCPUAffinity(cores)
}

// loadDatabase reads the feature cache when available, otherwise builds the
// database from the reference directory and writes the cache
func loadDatabase(log logs.Log, params featdetect.Params, refDir, cacheFile,
	classesFile string, rebuild, skip bool) (*featdetect.Database, error) {

	if cacheFile != "" && !rebuild {
		if f, err := os.Open(cacheFile); err == nil {
			defer f.Close()

			db, err := featdetect.ReadDatabaseCache(f)

			if err != nil {
				return nil, fmt.Errorf("error reading cache %s: %w", cacheFile, err)
			}

			log.Infof("Loaded %d classes from cache %s", db.Len(), cacheFile)

			return db, nil
		}
	}

	if refDir == "" {
		return nil, errors.New("no reference directory given")
	}

	opts := featdetect.LoadOptions{
		SkipUnreadable: skip,
		Log:            log,
	}

	if classesFile != "" {
		classes, err := featdetect.LoadLabels(classesFile)

		if err != nil {
			return nil, fmt.Errorf("error loading classes: %w", err)
		}

		opts.Classes = classes
	}

	refs, err := featdetect.LoadReferenceDir(refDir, opts)

	if err != nil {
		return nil, err
	}

	defer featdetect.CloseReferences(refs)

	db, err := featdetect.BuildDatabase(refs, params, log)

	if err != nil {
		return nil, err
	}

	if cacheFile != "" {
		if err := writeCache(db, cacheFile); err != nil {
			log.Warnf("Unable to write cache: %v", err)
		} else {
			log.Infof("Wrote feature cache %s", cacheFile)
		}
	}

	return db, nil
}

// writeCache saves the database features to file
func writeCache(db *featdetect.Database, file string) error {

	f, err := os.Create(file)

	if err != nil {
		return err
	}

	if err := db.WriteCache(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// logResult prints the detections of a frame
func logResult(log logs.Log, name string, res featdetect.Result) {

	for _, d := range res.Detections {
		log.Infof("%s: %s @ (ymin %d, xmin %d, ymax %d, xmax %d) count %d, %d matches, %d inliers, reference %s",
			name, d.Label, d.Box.YMin, d.Box.XMin, d.Box.YMax, d.Box.XMax, d.Count,
			d.Matches, d.Inliers, d.Reference)
	}
}

// detectImage runs detection on a single image file
func detectImage(log logs.Log, det *featdetect.KeypointDetector, style render.Style,
	imgFile, output string) error {

	img := gocv.IMRead(imgFile, gocv.IMReadColor)

	if img.Empty() {
		return fmt.Errorf("error reading image from: %s", imgFile)
	}

	defer img.Close()

	res := det.Detect(img)
	logResult(log, filepath.Base(imgFile), res)

	if output == "" {
		return nil
	}

	render.Detections(&img, res, style)

	if ok := gocv.IMWrite(output, img); !ok {
		return fmt.Errorf("failed to save the image to %s", output)
	}

	return nil
}

// detectDir runs detection on every image in a directory, writing annotated
// copies to the output directory
func detectDir(ctx context.Context, log logs.Log, det *featdetect.KeypointDetector,
	style render.Style, dir, output string) error {

	src, err := stream.NewImageDirSource(dir)

	if err != nil {
		return err
	}

	defer src.Close()

	if output != "" {
		if err := os.MkdirAll(output, 0755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}
	}

	var saveErr error

	n, err := stream.Run(ctx, src, det, func(frame gocv.Mat, res featdetect.Result) bool {

		name := filepath.Base(src.Current())
		logResult(log, name, res)

		if output == "" {
			return true
		}

		render.Detections(&frame, res, style)

		if ok := gocv.IMWrite(filepath.Join(output, name), frame); !ok {
			saveErr = fmt.Errorf("failed to save %s", name)
			return false
		}

		return true
	})

	log.Infof("Processed %d of %d images, %d unreadable", n, src.Len(), src.Skipped())

	if saveErr != nil {
		return saveErr
	}

	return err
}

// detectStream runs detection on a video file or camera, optionally showing
// and recording the annotated frames
func detectStream(ctx context.Context, log logs.Log, det *featdetect.KeypointDetector,
	style render.Style, vidFile string, camera int, output string, show bool) error {

	var (
		src *stream.CaptureSource
		err error
	)

	if vidFile != "" {
		src, err = stream.NewVideoSource(vidFile)
	} else {
		src, err = stream.NewCameraSource(camera)
	}

	if err != nil {
		return err
	}

	defer src.Close()

	var window *gocv.Window

	if show {
		window = gocv.NewWindow("detect")
		defer window.Close()
	}

	var writer *gocv.VideoWriter

	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	frameNum := 0

	n, err := stream.Run(ctx, src, det, func(frame gocv.Mat, res featdetect.Result) bool {

		frameNum++
		logResult(log, fmt.Sprintf("frame %d", frameNum), res)

		if window == nil && output == "" {
			return true
		}

		render.Detections(&frame, res, style)

		if output != "" {
			if writer == nil {
				w, werr := gocv.VideoWriterFile(output, "MJPG", 25, frame.Cols(), frame.Rows(), true)

				if werr != nil {
					log.Errorf("Error opening video writer: %v", werr)
					return false
				}

				writer = w
			}

			if err := writer.Write(frame); err != nil {
				log.Errorf("Error writing frame: %v", err)
				return false
			}
		}

		if window != nil {
			window.IMShow(frame)

			if window.WaitKey(1) == escKey {
				return false
			}
		}

		return true
	})

	log.Infof("Processed %d frames", n)

	return err
}
