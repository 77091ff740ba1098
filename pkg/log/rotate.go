package log

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

const rotateScheme = "lumberjack"

var registerRotateSink sync.Once

// rotateSink adapts a lumberjack.Logger to zap.Sink.
type rotateSink struct {
	*lumberjack.Logger
}

func (rotateSink) Sync() error { return nil }

// rotatedPaths rewrites every file output into a lumberjack sink URL carrying
// the rotation limits. stdout and stderr are left untouched.
func rotatedPaths(paths []string, opts *Options) []string {
	registerRotateSink.Do(func() {
		err := zap.RegisterSink(rotateScheme, func(u *url.URL) (zap.Sink, error) {
			filename := u.Path
			if filename == "" {
				filename = u.Opaque
			}
			q := u.Query()
			maxSize, _ := strconv.Atoi(q.Get("max-size"))
			maxBackups, _ := strconv.Atoi(q.Get("max-backups"))
			maxAge, _ := strconv.Atoi(q.Get("max-age"))
			return rotateSink{&lumberjack.Logger{
				Filename:   filename,
				MaxSize:    maxSize,
				MaxBackups: maxBackups,
				MaxAge:     maxAge,
				Compress:   q.Get("compress") == "true",
			}}, nil
		})
		if err != nil {
			panic(fmt.Sprintf("failed to register %s sink: %v", rotateScheme, err))
		}
	})

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "stdout" || p == "stderr" {
			out = append(out, p)
			continue
		}

		q := url.Values{}
		q.Set("max-size", strconv.Itoa(opts.MaxSize))
		q.Set("max-backups", strconv.Itoa(opts.MaxBackups))
		q.Set("max-age", strconv.Itoa(opts.MaxAge))
		q.Set("compress", strconv.FormatBool(opts.Compress))
		u := url.URL{Scheme: rotateScheme, Path: p, RawQuery: q.Encode()}
		out = append(out, u.String())
	}
	return out
}
