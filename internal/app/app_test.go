package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/studybuddy/internal/answer"
	"github.com/hyperjump/studybuddy/internal/config"
	"github.com/hyperjump/studybuddy/internal/export"
	"github.com/hyperjump/studybuddy/internal/llm"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/quiz"
)

const notes = `Photosynthesis is the process by which green plants use sunlight to make glucose from carbon dioxide and water.
It takes place in the chloroplasts, which contain the pigment chlorophyll.
Cellular respiration releases the energy stored in glucose so that cells can use it for growth and repair.`

const quizResponse = `{"questions":[
 {"question":"Where does photosynthesis take place?","options":["Chloroplasts","Nucleus","Ribosomes","Cell wall"],"correct_answer":"Chloroplasts","topic":"Plants"},
 {"question":"What does cellular respiration release?","options":["Energy","Oxygen","Chlorophyll","Water"],"correct_answer":"Energy","topic":"Cells"}
]}`

// studyGuide is a multi-topic document long enough to be split into several chunks.
var studyGuide = strings.Join([]string{
	"Temperate deciduous forests cover large parts of Europe, eastern North America and East Asia. Their trees shed leaves each autumn to survive freezing winters, and the fallen litter is broken down by fungi, earthworms and bacteria into humus. This rich soil supports a dense understory of shrubs, ferns and spring wildflowers that bloom before the canopy closes. Deer, foxes, owls and woodpeckers all depend on the layered structure of the forest for food and shelter throughout the year.",
	"The outer shell of the Earth is broken into rigid lithospheric plates that float on the softer asthenosphere beneath them. Where two plates pull apart, magma rises to form new oceanic crust along mid-ocean ridges. Where they collide, the denser plate sinks in a subduction zone, producing deep trenches, explosive volcanoes and powerful earthquakes. Over millions of years this slow motion has assembled and split supercontinents such as Pangaea, reshaping coastlines and mountain ranges.",
	"The French Revolution began in 1789 when financial crisis and food shortages pushed the Estates-General into open conflict with King Louis XVI. Parisians stormed the Bastille in July, and the National Assembly soon issued the Declaration of the Rights of Man and of the Citizen. The monarchy was abolished in 1792, and the radical Jacobins led by Robespierre launched the Reign of Terror. The upheaval ended with Napoleon Bonaparte seizing power in the coup of 1799.",
	"Cellular respiration converts the chemical energy of glucose into a form the cell can spend. Glycolysis splits glucose in the cytoplasm, and the Krebs cycle inside the mitochondrial matrix strips electrons from the fragments. " + electronTransport + " Oxygen is the final electron acceptor and combines with those protons to form water, which is why aerobic organisms must keep breathing.",
	"William Shakespeare wrote his sonnets in iambic pentameter, a line of ten syllables alternating unstressed and stressed beats. Each sonnet has fourteen lines arranged as three quatrains followed by a rhyming couplet that often turns the argument. His plays mix this verse with prose, giving kings and lovers elevated speech while servants and clowns talk in plain sentences. Scholars still debate the identity of the fair youth and the dark lady addressed in the poems.",
	"A normal distribution is symmetric around its mean, and its spread is measured by the standard deviation. Roughly sixty-eight percent of values fall within one standard deviation of the mean and about ninety-five percent within two. The central limit theorem explains why sample averages tend toward this bell-shaped curve even when the underlying data are skewed. Researchers rely on it to build confidence intervals and to test hypotheses about population parameters.",
}, "\n\n")

const electronTransport = "The mitochondrial electron transport chain pumps protons across the inner membrane to drive ATP synthase."

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage = config.StorageConfig{
		DatabasePath:     filepath.Join(dir, "studybuddy.db"),
		VectorIndexPath:  filepath.Join(dir, "indices", "vectors.bin"),
		KeywordIndexPath: filepath.Join(dir, "indices", "bleve"),
		UploadDir:        filepath.Join(dir, "uploads"),
	}
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimensions = 64
	cfg.LLM.Provider = "mock"
	config.ApplyDefaults(cfg)
	return cfg
}

func openApp(t *testing.T, cfg *config.Config, provider llm.Provider) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil, WithProvider(provider))
	require.NoError(t, err)
	return a
}

func uploads(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	entries, err := os.ReadDir(cfg.Storage.UploadDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestApp_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, t.TempDir())
	mock := llm.NewMockProvider()
	a := openApp(t, cfg, mock)
	defer a.Close()

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Chunks)
	assert.Equal(t, "mock", status.LLMModel)
	assert.Equal(t, 64, status.EmbeddingDimensions)

	ans, err := a.Ask(ctx, "What is photosynthesis?", "")
	require.NoError(t, err)
	assert.Equal(t, answer.NoDocumentsAnswer, ans.Answer)
	assert.Empty(t, ans.Sources)

	_, err = a.GenerateQuiz(ctx, quiz.Request{NumQuestions: 3})
	assert.ErrorIs(t, err, models.ErrNoContentAvailable)
	assert.Zero(t, mock.CallCount())

	summary, err := a.Progress(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalQuizzes)
	assert.Zero(t, summary.AverageScore)
}

func TestApp_StudySession(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	mock := llm.NewMockProvider(
		llm.MockResponse{Text: "Photosynthesis turns sunlight into glucose."},
		llm.MockResponse{Text: quizResponse},
	)
	a := openApp(t, cfg, mock)

	up, err := a.Upload(ctx, "/tmp/biology notes.txt", strings.NewReader(notes))
	require.NoError(t, err)
	assert.Equal(t, UploadMessage, up.Message)
	assert.Equal(t, "biology notes.txt", up.Filename)
	assert.Positive(t, up.ChunksCreated)
	assert.Equal(t, []string{up.FileID + ".txt"}, uploads(t, cfg))

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, up.ChunksCreated, status.Chunks)
	assert.Equal(t, up.ChunksCreated, status.VectorIndexSize)
	assert.Positive(t, status.DiskUsageBytes)

	res, err := a.Search(ctx, &models.SearchQuery{Query: "chlorophyll", Mode: models.SearchKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Contains(t, res.Results[0].Text, "chlorophyll")
	assert.Equal(t, "biology notes.txt", res.Results[0].Metadata[models.MetaSource])

	ans, err := a.Ask(ctx, "What is photosynthesis?", "")
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis turns sunlight into glucose.", ans.Answer)
	require.NotEmpty(t, ans.Sources)
	assert.Contains(t, ans.Sources[0], "[Source: biology notes.txt]")
	assert.Len(t, a.ConversationHistory(ans.ConversationID), 2)

	generated, err := a.GenerateQuiz(ctx, quiz.Request{NumQuestions: 2, QuestionType: models.QuestionMCQ})
	require.NoError(t, err)
	require.Len(t, generated.Questions, 2)

	stored, err := a.Quiz(ctx, generated.ID)
	require.NoError(t, err)
	assert.False(t, stored.Submitted)

	grade, err := a.SubmitQuiz(ctx, generated.ID, map[int]string{0: "chloroplasts", 1: "Oxygen"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, grade.Score)
	assert.Equal(t, 1, grade.CorrectAnswers)

	_, err = a.SubmitQuiz(ctx, generated.ID, map[int]string{0: "Chloroplasts", 1: "Energy"})
	assert.ErrorIs(t, err, models.ErrQuizAlreadySubmitted)
	_, err = a.SubmitQuiz(ctx, "missing", nil)
	assert.ErrorIs(t, err, models.ErrQuizNotFound)

	weak, err := a.WeakAreas(ctx)
	require.NoError(t, err)
	require.Len(t, weak, 1)
	assert.Equal(t, "Cells", weak[0].Topic)

	var buf bytes.Buffer
	require.NoError(t, a.ExportProgress(ctx, &buf))
	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	rows, err := wb.GetRows(export.SheetQuizzes)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	require.NoError(t, wb.Close())

	require.NoError(t, a.Close())

	// Chunks, quizzes and progress survive a restart.
	reopened := openApp(t, cfg, llm.NewMockProvider())
	defer reopened.Close()

	status, err = reopened.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, up.ChunksCreated, status.Chunks)
	assert.Equal(t, up.ChunksCreated, status.VectorIndexSize)

	summary, err := reopened.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalQuizzes)
	assert.Equal(t, 2, summary.TotalQuestionsAttempted)
	assert.Equal(t, 50.0, summary.AverageScore)

	history, err := reopened.QuizHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Submitted)
}

func TestApp_AskCitesPassageFromLongDocument(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, t.TempDir())
	cfg.Embedding.Dimensions = 256
	cfg.RAG.PreviewLength = cfg.RAG.ChunkSize
	const reply = "The electron transport chain pumps protons across the inner membrane, and that gradient drives ATP synthase."
	mock := llm.NewMockProvider(llm.MockResponse{Text: reply})
	a := openApp(t, cfg, mock)
	defer a.Close()

	require.GreaterOrEqual(t, len(studyGuide), 2500)
	up, err := a.Upload(ctx, "study guide.txt", strings.NewReader(studyGuide))
	require.NoError(t, err)
	require.Greater(t, up.ChunksCreated, 1, "the guide spans several chunks")

	ans, err := a.Ask(ctx, "How does the mitochondrial electron transport chain drive ATP synthase?", "")
	require.NoError(t, err)
	assert.Equal(t, reply, ans.Answer)
	require.NotEmpty(t, ans.Sources)
	assert.LessOrEqual(t, len(ans.Sources), cfg.RAG.EvidenceCount)

	cited := false
	for _, src := range ans.Sources {
		assert.Contains(t, src, "[Source: study guide.txt]")
		if strings.Contains(src, electronTransport) {
			cited = true
		}
	}
	assert.True(t, cited, "sources should quote the passage that answers the question: %q", ans.Sources)
	assert.Equal(t, 1, mock.CallCount())
}

func TestApp_MixedQuizSplitsTypes(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, t.TempDir())
	mock := llm.NewMockProvider(
		llm.MockResponse{Text: `{"questions":[
 {"question":"Where does photosynthesis take place?","options":["Chloroplasts","Nucleus","Ribosomes","Cell wall"],"correct_answer":"Chloroplasts","topic":"Plants"},
 {"question":"Which pigment captures sunlight?","options":["Chlorophyll","Keratin","Melanin","Hemoglobin"],"correct_answer":"Chlorophyll"}
]}`},
		llm.MockResponse{Text: `{"questions":[
 {"question":"What gas do plants take in to make glucose?","correct_answer":"Carbon dioxide","topic":"Plants"},
 {"question":"What process releases the energy stored in glucose?","correct_answer":"Cellular respiration","topic":"Cells"},
 {"question":"What do cells use released energy for?","correct_answer":"Growth and repair"}
]}`},
	)
	a := openApp(t, cfg, mock)
	defer a.Close()

	_, err := a.Upload(ctx, "biology.txt", strings.NewReader(notes))
	require.NoError(t, err)

	generated, err := a.GenerateQuiz(ctx, quiz.Request{NumQuestions: 5, QuestionType: models.QuestionMixed})
	require.NoError(t, err)
	assert.Equal(t, models.QuestionMixed, generated.QuestionType)
	require.Len(t, generated.Questions, 5)
	assert.Equal(t, 2, mock.CallCount())

	for i, q := range generated.Questions {
		want := models.QuestionShortAnswer
		if i < 2 {
			want = models.QuestionMCQ
		}
		assert.Equal(t, want, q.QuestionType, "question %d", i)
		assert.NotEmpty(t, q.Topic, "question %d", i)
	}
	assert.Len(t, generated.Questions[0].Options, 4)
	assert.Empty(t, generated.Questions[2].Options)
	assert.Equal(t, models.DefaultTopic, generated.Questions[1].Topic)
	assert.Equal(t, models.DefaultTopic, generated.Questions[4].Topic)

	stored, err := a.Quiz(ctx, generated.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Questions, 5)
}

func TestApp_UnsupportedUploadWritesNothing(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, t.TempDir())
	a := openApp(t, cfg, llm.NewMockProvider())
	defer a.Close()

	_, err := a.Upload(ctx, "slides.pptx", strings.NewReader("not a study file"))
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)

	_, err = a.Upload(ctx, "broken.pdf", strings.NewReader("%PDF-1.4 truncated"))
	assert.ErrorIs(t, err, models.ErrExtractionFailed)

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Chunks)
	assert.Empty(t, uploads(t, cfg))
}

func TestApp_ClearDocuments(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, t.TempDir())
	mock := llm.NewMockProvider()
	a := openApp(t, cfg, mock)
	defer a.Close()

	_, err := a.Upload(ctx, "notes.txt", strings.NewReader(notes))
	require.NoError(t, err)

	require.NoError(t, a.ClearDocuments(ctx))

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Chunks)
	assert.Zero(t, status.VectorIndexSize)
	assert.Empty(t, uploads(t, cfg))

	ans, err := a.Ask(ctx, "What is photosynthesis?", "")
	require.NoError(t, err)
	assert.Equal(t, answer.NoDocumentsAnswer, ans.Answer)
	assert.Zero(t, mock.CallCount())

	// The index stays usable after a clear.
	up, err := a.Upload(ctx, "notes.txt", strings.NewReader(notes))
	require.NoError(t, err)
	assert.Positive(t, up.ChunksCreated)
}

func TestApp_IngestFileReplacesPreviousChunks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	a := openApp(t, cfg, llm.NewMockProvider())
	defer a.Close()

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(notes), 0o644))

	first, err := a.IngestFile(ctx, path)
	require.NoError(t, err)
	second, err := a.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, status.Chunks)
}

func TestApp_KeywordOptionsFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, t.TempDir())
	cfg.RAG.Fuzziness = 1
	cfg.RAG.SourceBoost = 2
	a := openApp(t, cfg, llm.NewMockProvider())
	defer a.Close()

	_, err := a.Upload(ctx, "plants.txt", strings.NewReader(notes))
	require.NoError(t, err)

	res, err := a.Search(ctx, &models.SearchQuery{Query: "chlorophyl", Mode: models.SearchKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, res.Results, "a one-letter typo should match with fuzziness 1")
	assert.Contains(t, res.Results[0].Text, "chlorophyll")
}
