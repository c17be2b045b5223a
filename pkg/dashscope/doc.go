// Package dashscope provides realtime speech clients for Aliyun DashScope
// (Model Studio) WebSocket APIs.
//
// Two independent upstream protocols are implemented:
//
//   - Recognition: the duplex task protocol used by paraformer realtime
//     speech recognition (run-task / task-started / result-generated /
//     task-finished envelopes, audio as raw binary frames).
//   - Synthesis: the realtime session protocol used by qwen-tts streaming
//     speech synthesis (session.update / input_text_buffer.append /
//     response.audio.delta envelopes).
//
// # Recognition
//
//	client := dashscope.NewClient("sk-xxxxxxxx")
//	task, err := client.Recognition.Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer task.Close()
//
//	if err := task.Start(ctx, &dashscope.TaskConfig{SampleRate: 16000}); err != nil {
//	    log.Fatal(err)
//	}
//	task.SendAudio(pcm)
//	task.Finish()
//	for result, err := range task.Results() {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(result.Text)
//	}
//
// # Synthesis
//
//	sess, err := client.Synthesis.Connect(ctx, "Cherry")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	if err := sess.ConfigureSession(ctx, nil); err != nil {
//	    log.Fatal(err)
//	}
//	sess.AppendText("你好")
//	sess.Finish()
//	for frame, err := range sess.AudioFrames() {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    out.Write(frame)
//	}
//
// Each link is owned by exactly one caller; there is no pooling or reuse.
// Close is idempotent on both link types.
package dashscope
