package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/studybuddy/internal/cli"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/quiz"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]...",
	Short: "Ask a question about your material",
	Long: `Answer a question from the indexed material. Without a question, questions are
read line by line from standard input as one conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		conversationID, _ := cmd.Flags().GetString("conversation")

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		if question := joinArgs(args); question != "" {
			ans, err := s.Ask(cmd.Context(), question, conversationID)
			if err != nil {
				return err
			}
			return cli.WriteAnswer(out, ans, format)
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		fmt.Fprint(out, "> ")
		for scanner.Scan() {
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				fmt.Fprint(out, "> ")
				continue
			}
			ans, err := s.Ask(cmd.Context(), question, conversationID)
			if err != nil {
				return err
			}
			conversationID = ans.ConversationID
			if err := cli.WriteAnswer(out, ans, format); err != nil {
				return err
			}
			fmt.Fprint(out, "\n> ")
		}
		return scanner.Err()
	},
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Generate a quiz from your material",
	Long: `Generate a quiz. With --interactive the questions are asked one by one and the
quiz is graded at the end; otherwise it is printed for a later "submit".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		num, _ := cmd.Flags().GetInt("num")
		qtype, _ := cmd.Flags().GetString("type")
		topic, _ := cmd.Flags().GetString("topic")
		interactive, _ := cmd.Flags().GetBool("interactive")
		questionType, err := models.ParseQuestionType(qtype)
		if err != nil {
			return err
		}

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		generated, err := s.GenerateQuiz(cmd.Context(), quiz.Request{
			NumQuestions: num,
			QuestionType: questionType,
			Topic:        topic,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !interactive {
			if err := cli.WriteQuiz(out, generated, format); err != nil {
				return err
			}
			if format == cli.OutputText {
				fmt.Fprintf(out, "\nSubmit with: studybuddy submit %s answers.json\n", generated.ID)
			}
			return nil
		}

		answers := askQuestions(cmd.InOrStdin(), out, generated)
		result, err := s.SubmitQuiz(cmd.Context(), generated.ID, answers)
		if err != nil {
			return err
		}
		return cli.WriteGradeResult(out, result, format)
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <quiz-id> <answers.json>",
	Short: "Grade answers for a generated quiz",
	Long: `Grade a quiz. The answers file maps question numbers (from 0) to answers,
e.g. {"0": "Chloroplasts", "1": "Light drives photosynthesis"}. Use "-" to read standard input.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		var in io.Reader = cmd.InOrStdin()
		if args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open answers: %w", err)
			}
			defer f.Close()
			in = f
		}
		answers, err := readAnswers(in)
		if err != nil {
			return err
		}

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		result, err := s.SubmitQuiz(cmd.Context(), args[0], answers)
		if err != nil {
			return err
		}
		return cli.WriteGradeResult(cmd.OutOrStdout(), result, format)
	},
}

func init() {
	askCmd.Flags().String("conversation", "", "continue an existing conversation id")
	addOutputFlag(askCmd)

	quizCmd.Flags().IntP("num", "n", 5, "number of questions")
	quizCmd.Flags().StringP("type", "t", string(models.QuestionMCQ), "question type: mcq, short_answer or mixed")
	quizCmd.Flags().String("topic", "", "focus the quiz on a topic")
	quizCmd.Flags().BoolP("interactive", "i", false, "answer the questions now and grade them")
	addOutputFlag(quizCmd)

	addOutputFlag(submitCmd)
}

// readAnswers decodes an answers file keyed by question index.
func readAnswers(r io.Reader) (map[int]string, error) {
	var answers map[int]string
	if err := json.NewDecoder(r).Decode(&answers); err != nil {
		return nil, fmt.Errorf("invalid answers file: %w", err)
	}
	return answers, nil
}

// askQuestions prompts for every question and collects the answers. Reading stops
// at end of input; unanswered questions are left out.
func askQuestions(in io.Reader, out io.Writer, q *models.Quiz) map[int]string {
	answers := make(map[int]string, len(q.Questions))
	scanner := bufio.NewScanner(in)
	for i, question := range q.Questions {
		cli.WriteQuestion(out, i, question)
		fmt.Fprint(out, "Your answer: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		answers[i] = resolveChoice(question, scanner.Text())
	}
	return answers
}

// resolveChoice maps an option letter to the option text for multiple choice questions.
// Anything else is returned trimmed.
func resolveChoice(q models.Question, input string) string {
	input = strings.TrimSpace(input)
	if len(q.Options) == 0 || len(input) != 1 {
		return input
	}
	idx := int(strings.ToUpper(input)[0]) - 'A'
	if idx >= 0 && idx < len(q.Options) {
		return q.Options[idx]
	}
	return input
}
