package translate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kotobalab/honyaku/internal/extract"
	"github.com/kotobalab/honyaku/internal/llm"
)

// Options describes a translation job. Zero-value fields fall back to the
// pipeline defaults.
type Options struct {
	SourceLang string
	TargetLang string
	Country    string
}

// ProgressFunc is called after each completed chunk with the number of chunks
// finished so far, from 1 up to the chunk count.
type ProgressFunc func(completed int)

// Pipeline runs source text through translation, critique, and revision.
type Pipeline struct {
	model     llm.LanguageModel
	extractor *extract.Extractor
	logger    *zap.Logger

	chunkSize       int
	translationsDir string
	defaults        Options
}

// NewPipeline creates a pipeline. chunkSize bounds the rune length of a chunk
// sent through the three stages; translationsDir receives the output files of
// file translations.
func NewPipeline(model llm.LanguageModel, extractor *extract.Extractor, logger *zap.Logger, chunkSize int, translationsDir string, defaults Options) *Pipeline {
	return &Pipeline{
		model:           model,
		extractor:       extractor,
		logger:          logger,
		chunkSize:       chunkSize,
		translationsDir: translationsDir,
		defaults:        defaults,
	}
}

func (p *Pipeline) resolve(opts Options) Options {
	if opts.SourceLang == "" {
		opts.SourceLang = p.defaults.SourceLang
	}
	if opts.TargetLang == "" {
		opts.TargetLang = p.defaults.TargetLang
	}
	if opts.Country == "" {
		opts.Country = p.defaults.Country
	}
	return opts
}

// translateChunk runs one chunk through the three stages in order. Each stage
// feeds the next; any failure aborts the chunk.
func (p *Pipeline) translateChunk(ctx context.Context, opts Options, sourceText string) (string, error) {
	initial, err := p.model.Complete(ctx, translatorSystem(opts), initialTranslationPrompt(opts, sourceText))
	if err != nil {
		return "", fmt.Errorf("initial translation failed: %w", err)
	}

	suggestions, err := p.model.Complete(ctx, translatorSystem(opts), reflectionPrompt(opts, sourceText, initial))
	if err != nil {
		return "", fmt.Errorf("translation critique failed: %w", err)
	}

	improved, err := p.model.Complete(ctx, editorSystem(opts), improvementPrompt(opts, sourceText, initial, suggestions))
	if err != nil {
		return "", fmt.Errorf("translation revision failed: %w", err)
	}
	return improved, nil
}

// TranslateText translates text as a single chunk.
func (p *Pipeline) TranslateText(ctx context.Context, text string, opts Options) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("nothing to translate")
	}
	return p.translateChunk(ctx, p.resolve(opts), text)
}

// TranslateChunked splits text into chunks and translates them in order,
// reporting progress after each chunk. A chunk failure aborts the whole job;
// progress already reported is not rolled back.
func (p *Pipeline) TranslateChunked(ctx context.Context, text string, opts Options, onProgress ProgressFunc) (string, error) {
	opts = p.resolve(opts)
	chunks := SplitText(text, p.chunkSize)
	if len(chunks) == 0 {
		return "", fmt.Errorf("nothing to translate")
	}

	p.logger.Info("translation started",
		zap.Int("chunks", len(chunks)),
		zap.String("source_lang", opts.SourceLang),
		zap.String("target_lang", opts.TargetLang))

	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		result, err := p.translateChunk(ctx, opts, chunk)
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		translated = append(translated, result)
		if onProgress != nil {
			onProgress(i + 1)
		}
	}
	return strings.Join(translated, "\n\n"), nil
}

// TranslateFile extracts the text of a document, translates it, and writes
// the result next to the translations directory as <stem>_translated.txt.
// Returns the translated text and the output path.
func (p *Pipeline) TranslateFile(ctx context.Context, path string, opts Options, onProgress ProgressFunc) (string, string, error) {
	text, err := p.extractor.Extract(path)
	if err != nil {
		return "", "", err
	}

	translated, err := p.TranslateChunked(ctx, text, opts, onProgress)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(p.translationsDir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create translations directory: %w", err)
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	outPath := filepath.Join(p.translationsDir, stem+"_translated.txt")
	if err := os.WriteFile(outPath, []byte(translated), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write translated file: %w", err)
	}

	p.logger.Info("translated file written", zap.String("path", outPath))
	return translated, outPath, nil
}
