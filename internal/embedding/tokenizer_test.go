package embedding

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testVocab() map[string]int64 {
	return map[string]int64{
		"[PAD]": 0, "[UNK]": 1, "[CLS]": 2, "[SEP]": 3,
		"photo": 4, "##synthesis": 5, "cells": 6, "divide": 7, ".": 8, "mito": 9, "##chondria": 10,
	}
}

func TestWordPieceTokenizer_Tokenize(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab())
	ids, attn, types := tok.Tokenize("Photosynthesis: cells divide.", 10)

	// ":" is not in the vocabulary and becomes [UNK].
	wantIDs := []int64{2, 4, 5, 1, 6, 7, 8, 3, 0, 0}
	if !reflect.DeepEqual(ids, wantIDs) {
		t.Errorf("ids = %v, want %v", ids, wantIDs)
	}
	wantMask := []int64{1, 1, 1, 1, 1, 1, 1, 1, 0, 0}
	if !reflect.DeepEqual(attn, wantMask) {
		t.Errorf("mask = %v, want %v", attn, wantMask)
	}
	if !reflect.DeepEqual(types, make([]int64, 10)) {
		t.Errorf("token types = %v, want zeros", types)
	}
}

func TestWordPieceTokenizer_unknownWordIsSingleUNK(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab())
	// "photox" splits into "photo" + "##x"; "##x" is missing, so the whole word is [UNK].
	ids, _, _ := tok.Tokenize("photox mitochondria", 6)
	want := []int64{2, 1, 9, 10, 3, 0}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestWordPieceTokenizer_truncatesKeepingSEP(t *testing.T) {
	ids, attn, _ := NewWordPieceTokenizer(testVocab()).Tokenize("cells divide cells divide cells", 4)
	if want := []int64{2, 6, 7, 3}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	if want := []int64{1, 1, 1, 1}; !reflect.DeepEqual(attn, want) {
		t.Errorf("mask = %v, want %v", attn, want)
	}
}

func TestLoadWordPiece(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.onnx")
	vocab := "[PAD]\r\n[UNK]\n[CLS]\n[SEP]\ncells\n"
	if err := os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(vocab), 0600); err != nil {
		t.Fatal(err)
	}

	tok, err := newTokenizer("", model)
	if err != nil {
		t.Fatal(err)
	}
	wp, ok := tok.(*WordPieceTokenizer)
	if !ok {
		t.Fatalf("tokenizer = %T, want *WordPieceTokenizer", tok)
	}
	if wp.unk != 1 || wp.cls != 2 || wp.sep != 3 || wp.vocab["cells"] != 4 {
		t.Errorf("special ids unk=%d cls=%d sep=%d cells=%d", wp.unk, wp.cls, wp.sep, wp.vocab["cells"])
	}

	if _, err := newTokenizer(filepath.Join(dir, "missing.txt"), model); err == nil {
		t.Error("an explicit missing vocab should fail")
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWordPiece(empty); err == nil {
		t.Error("an empty vocab should fail")
	}
}

func TestNewTokenizer_fallsBackToHash(t *testing.T) {
	tok, err := newTokenizer("", filepath.Join(t.TempDir(), "model.onnx"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tok.(HashTokenizer); !ok {
		t.Fatalf("tokenizer = %T, want HashTokenizer", tok)
	}
	ids, attn, _ := tok.Tokenize("hello world", 10)
	if ids[0] != clsTokenID || ids[3] != sepTokenID {
		t.Errorf("ids = %v, want CLS and SEP around two terms", ids)
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("mask = %v", attn)
	}
}

func TestTerms(t *testing.T) {
	got := Terms("  The Krebs-cycle, (citric acid) 2x!  ")
	want := []string{"the", "krebs", "cycle", "citric", "acid", "2x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
	if len(Terms("  ...  ")) != 0 {
		t.Error("punctuation only should give no terms")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("different strings should hash apart")
	}
	if HashString("a very long string that overflows the multiplier many times over") < 0 {
		t.Error("hash should be non-negative")
	}
}
