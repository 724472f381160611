package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/twpayne/go-elevationmap"
)

const usage = `usage: elevationmap [flags] command [args]

commands:
  query latitude longitude (northing easting when sourceCRS is set)
  points file.geojson
  insert [-lat-index n] [-lon-index n] [-depth n] [-ancestor-depth n] [-resolution n] file
  convert [-delete] [-format png|tif] [-precision 8|16|24] src-dir dst-dir

flags:
`

type config struct {
	Repository     string
	MaximumDepth   int
	Resolution     int
	Format         string
	TileCacheSize  int
	PointCacheSize int
	PointCacheTTL  time.Duration
	Interpolation  string
	SourceCRS      string
}

func newLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&nested.Formatter{
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	logger.SetOutput(ansicolor.NewAnsiColorWriter(os.Stderr))
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(logLevel)
	return logger, nil
}

func readConfig(configFile string) (*config, error) {
	v := viper.New()
	v.SetEnvPrefix("elevationmap")
	v.AutomaticEnv()
	v.SetDefault("repository", "")
	v.SetDefault("maximumDepth", elevationmap.DefaultMaximumDepth)
	v.SetDefault("resolution", elevationmap.DefaultResolution)
	v.SetDefault("format", string(elevationmap.FormatPNG))
	v.SetDefault("tileCacheSize", 64)
	v.SetDefault("pointCacheSize", 1<<16)
	v.SetDefault("pointCacheTTL", time.Duration(0))
	v.SetDefault("interpolation", "nearest")
	v.SetDefault("sourceCRS", "")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	var c config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func newStore(c *config, logger logrus.FieldLogger) (*elevationmap.TileStore, error) {
	if c.Repository == "" {
		return elevationmap.NewZeroTileStore(), nil
	}
	format, err := elevationmap.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	return elevationmap.NewTileStore(
		elevationmap.WithRepository(c.Repository),
		elevationmap.WithMaximumDepth(c.MaximumDepth),
		elevationmap.WithResolution(c.Resolution),
		elevationmap.WithFormat(format),
		elevationmap.WithTileCacheSize(c.TileCacheSize),
		elevationmap.WithPointCacheSize(c.PointCacheSize),
		elevationmap.WithPointCacheTTL(c.PointCacheTTL),
		elevationmap.WithLogger(logger),
	)
}

func newProvider(c *config, store *elevationmap.TileStore) (elevationmap.ElevationProvider, error) {
	var interpolation elevationmap.Interpolation
	switch c.Interpolation {
	case "nearest":
		interpolation = elevationmap.InterpolationNearest
	case "bilinear":
		interpolation = elevationmap.InterpolationBilinear
	default:
		return nil, fmt.Errorf("%s: unknown interpolation", c.Interpolation)
	}
	var provider elevationmap.ElevationProvider = elevationmap.NewTileProvider(store, elevationmap.WithInterpolation(interpolation))
	if c.SourceCRS != "" {
		return elevationmap.NewProjectedProvider(provider, c.SourceCRS)
	}
	return provider, nil
}

func runQuery(ctx context.Context, c *config, logger logrus.FieldLogger, args []string) error {
	if len(args) != 2 {
		if c.SourceCRS != "" {
			return errors.New("syntax: elevationmap query northing easting")
		}
		return errors.New("syntax: elevationmap query latitude longitude")
	}
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return err
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return err
	}
	if c.SourceCRS != "" {
		logger.WithFields(logrus.Fields{
			"sourceCRS": c.SourceCRS,
			"northing":  lat,
			"easting":   lon,
		}).Debug("querying projected coordinates")
	}
	store, err := newStore(c, logger)
	if err != nil {
		return err
	}
	provider, err := newProvider(c, store)
	if err != nil {
		return err
	}
	elevation, err := provider.Elevation(ctx, lat, lon)
	if err != nil {
		return err
	}
	fmt.Println(elevation)
	return nil
}

func runPoints(ctx context.Context, c *config, logger logrus.FieldLogger, args []string) error {
	if len(args) != 1 {
		return errors.New("syntax: elevationmap points file.geojson")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	featureCollection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return err
	}
	var points []orb.Point
	for _, feature := range featureCollection.Features {
		point, ok := feature.Geometry.(orb.Point)
		if !ok {
			logger.WithField("type", feature.Geometry.GeoJSONType()).Warn("skipping non-point feature")
			continue
		}
		points = append(points, point)
	}
	store, err := newStore(c, logger)
	if err != nil {
		return err
	}
	provider, err := newProvider(c, store)
	if err != nil {
		return err
	}
	elevations, err := provider.Elevations(ctx, points)
	if err != nil {
		return err
	}
	for i, point := range points {
		fmt.Printf("%f\t%f\t%f\n", point.Lat(), point.Lon(), elevations[i])
	}
	return nil
}

func runInsert(c *config, logger logrus.FieldLogger, args []string) error {
	flagSet := flag.NewFlagSet("insert", flag.ContinueOnError)
	latIndex := flagSet.Int("lat-index", 0, "latitude index of the tile")
	lonIndex := flagSet.Int("lon-index", 0, "longitude index of the tile")
	depth := flagSet.Int("depth", 0, "depth of the tile")
	ancestorDepth := flagSet.Int("ancestor-depth", 0, "depth at which a tile already exists")
	resolution := flagSet.Int("resolution", 0, "resolution of the input file, inferred for raw16 files")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("syntax: elevationmap insert [flags] file")
	}
	if c.Repository == "" {
		return errors.New("no repository configured")
	}

	filename := flagSet.Arg(0)
	format, err := elevationmap.ParseFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if *resolution == 0 {
		if format != elevationmap.FormatRaw16 {
			return errors.New("-resolution is required for image files")
		}
		*resolution = int(math.Sqrt(float64(len(data) / 2)))
	}
	key := elevationmap.TileKey{
		LatIndex: *latIndex,
		LonIndex: *lonIndex,
		Depth:    *depth,
	}
	target, err := elevationmap.DecodeTile(data, format, key, *resolution)
	if err != nil {
		return err
	}

	store, err := newStore(c, logger)
	if err != nil {
		return err
	}
	if err := store.Insert(target, *ancestorDepth); err != nil {
		return err
	}
	logger.WithField("tile", key.String()).Info("inserted tile")
	return nil
}

func runConvert(c *config, logger logrus.FieldLogger, args []string) error {
	flagSet := flag.NewFlagSet("convert", flag.ContinueOnError)
	deleteSources := flagSet.Bool("delete", false, "delete converted source files")
	formatStr := flagSet.String("format", string(elevationmap.FormatPNG), "output format")
	precision := flagSet.Int("precision", int(elevationmap.Precision24), "output precision")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return errors.New("syntax: elevationmap convert [flags] src-dir dst-dir")
	}
	format, err := elevationmap.ParseFormat(*formatStr)
	if err != nil {
		return err
	}

	var bar *pb.ProgressBar
	n, err := elevationmap.ConvertRepository(flagSet.Arg(0), flagSet.Arg(1),
		elevationmap.WithConvertResolution(c.Resolution),
		elevationmap.WithConvertFormat(format),
		elevationmap.WithConvertPrecision(elevationmap.Precision(*precision)),
		elevationmap.WithDeleteSources(*deleteSources),
		elevationmap.WithConvertLogger(logger),
		elevationmap.WithProgress(func(done, total int) {
			if bar == nil {
				bar = pb.New(total).Prefix("convert: ")
				bar.Start()
			}
			bar.Increment()
		}),
	)
	if bar != nil {
		bar.FinishPrint(fmt.Sprintf("converted %d tiles", n))
	}
	return err
}

func run() error {
	configFile := flag.String("config", os.Getenv("ELEVATIONMAP_CONFIG"), "config file")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Usage = func() {
		_, _ = io.WriteString(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	c, err := readConfig(*configFile)
	if err != nil {
		return err
	}

	if flag.NArg() < 1 {
		flag.Usage()
		return errors.New("missing command")
	}
	ctx := context.Background()
	switch command, args := flag.Arg(0), flag.Args()[1:]; command {
	case "query":
		return runQuery(ctx, c, logger, args)
	case "points":
		return runPoints(ctx, c, logger, args)
	case "insert":
		return runInsert(c, logger, args)
	case "convert":
		return runConvert(c, logger, args)
	default:
		return fmt.Errorf("%s: unknown command", command)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
