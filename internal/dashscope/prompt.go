package dashscope

const systemInstruction = "You are a helpful assistant."

// analysisPrompt asks for the structured multi-section interpretation the
// clients render: concept summary, terminology, method walkthrough,
// experiments, and conclusions, with a fixed heading-level convention.
const analysisPrompt = `帮我详细解释一下这篇文章，包括以下部分
1. 论文核心概念🔍（对论文核心 insight 的简要总结）
2. 论文内名词解释🧐（对论文中出现多次，或者比较重要的名词的详细解释）
3. 论文方法🔬
3.1 过去方法的问题 （顺便引出方法的 motivation）
3.2 整体框架（整个论文的方法部分的核心流程的超详细说明，需要保证通过说明可以完整复现出整个方法，包括细节，公式流程，变量说明）
3.3 核心难点解析 （将方法中比较复杂的部分或者比较关键的部分在这里进行更加直白易懂的解释）
4. 实验结果与分析📊
4.1 实验设置（数据集，模型，指标，超参数设置，对比方法等的内容）
4.2 实验结果（该方法指标提升了多少，以及其他相关效果或正面的评价）
5. 结论💎
5.1 论文的贡献
5.2 论文的限制（论文在哪些方面有问题）
5.3 未来的方向（未来可能的发展方向）
注意：
1. 在最开头加上一个一级标题作为文章的简单标记，让我在后续回顾的时候能根据标记快速回想起这篇文章的特点，例如 GQE-PRF：基于伪相关反馈的生成式查询扩展
2. 请你对 x. 这类使用二级标题，对 x.x 使用三级标题，除了上述说明外其他所有内容都不要使用标题加粗，但可以使用序号进行罗列
3. 注意对于较长的公式你需要将其分为多行公式，这样更清晰，方便我理解 (即公式内容不变，但从某个运算符号进行切分并展示为多行)`
