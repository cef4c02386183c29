// mftrain 是离线训练 CLI：读取评分 CSV，训练矩阵分解模型，
// 把因子工件写到输出目录（与线上 artifact.Load 的布局一致）。
//
// CSV 格式（可带表头）：user_id,item_id,rating
//
// 用法：
//
//	mftrain -input ratings.csv -output ./artifacts -factors 15 -epochs 50 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/rushteam/shoprec/mf"
)

func main() {
	var (
		input   = flag.String("input", "", "评分 CSV 路径（user_id,item_id,rating）")
		output  = flag.String("output", "./artifacts", "工件输出目录")
		factors = flag.Int("factors", 15, "隐向量维数 k")
		epochs  = flag.Int("epochs", 50, "训练轮数（固定轮数，不做 early stopping）")
		lr      = flag.Float64("lr", 0.01, "SGD 学习率")
		seed    = flag.Int64("seed", 42, "随机种子（同种子同输入 → 逐位一致）")
		holdout = flag.Float64("holdout", 0.1, "留出集比例（仅监控用）")
	)
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	ratings, err := loadRatings(*input)
	if err != nil {
		log.Fatalf("load ratings: %v", err)
	}
	log.Printf("loaded %d ratings from %s", len(ratings), *input)

	trainer := mf.DefaultTrainer(*seed)
	trainer.Factors = *factors
	trainer.Epochs = *epochs
	trainer.LearningRate = *lr
	trainer.HoldoutFrac = *holdout

	model, report, err := trainer.Fit(ratings)
	if err != nil {
		log.Fatalf("train: %v", err)
	}

	for _, m := range report.History {
		if math.IsNaN(m.HoldoutRMSE) {
			log.Printf("epoch %3d  train_rmse=%.4f", m.Epoch, m.TrainRMSE)
			continue
		}
		log.Printf("epoch %3d  train_rmse=%.4f  holdout_rmse=%.4f  holdout_mae=%.4f",
			m.Epoch, m.TrainRMSE, m.HoldoutRMSE, m.HoldoutMAE)
	}
	log.Printf("trained: %d users, %d items, train=%d holdout=%d",
		len(model.UserIDs), len(model.ItemIDs), report.TrainSize, report.HoldoutSize)

	if err := os.MkdirAll(*output, 0o755); err != nil {
		log.Fatalf("mkdir %s: %v", *output, err)
	}
	if err := model.Save(*output); err != nil {
		log.Fatalf("save artifacts: %v", err)
	}
	log.Printf("artifacts written to %s", *output)
}

// loadRatings 读取 CSV。首行不是数字评分时按表头跳过。
func loadRatings(path string) ([]mf.Rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	var ratings []mf.Rating
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		score, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			if line == 1 {
				continue // 表头
			}
			return nil, fmt.Errorf("line %d: bad rating %q", line, rec[2])
		}
		ratings = append(ratings, mf.Rating{UserID: rec[0], ItemID: rec[1], Score: score})
	}
	return ratings, nil
}
